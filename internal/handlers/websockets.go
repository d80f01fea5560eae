package handlers

import (
	"net/http"
	"time"

	"searchgateway"
	"searchgateway/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Send/receive timing configuration and message size limits.
const (
	writeWait  = 10 * time.Second
	readWait   = 30 * time.Second
	maxMsgSize = 1 << 16 // 64 KB; a batch of query specs, not result data
)

// Envelope used for WebSocket messages.
type wsEnvelope struct {
	Type  string `json:"type"` // result | row | done | error
	RefID string `json:"refId,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// Upgrader for HTTP -> WebSocket. Consider tightening CheckOrigin in production.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true }, // TODO: restrict origins for production
}

// wsQuery accepts one QueryRequest over a fresh WebSocket connection, runs
// the batch, and streams results back row by row: a "result" envelope with
// the column layout per query, "row" envelopes with aligned values, then
// "done". Errors arrive as an "error" envelope before the socket closes.
func (h *Handler) wsQuery(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Errorw("ws_upgrade_failed", "err", err)
		return
	}
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(readWait))

	var req models.QueryRequest
	if err := conn.ReadJSON(&req); err != nil {
		h.log.Infow("ws_read_failed", "err", err)
		h.writeEnvelope(conn, wsEnvelope{Type: "error", Error: "invalid query request: " + err.Error()})
		return
	}
	if len(req.Queries) == 0 {
		h.writeEnvelope(conn, wsEnvelope{Type: "error", Error: "no queries supplied"})
		return
	}

	results, err := h.search.RunQueries(c.Request.Context(), req.Queries, req.Range)
	if err != nil {
		h.log.Errorw("ws_query_failed", "err", err)
		h.writeEnvelope(conn, wsEnvelope{Type: "error", Error: err.Error()})
		return
	}

	for _, res := range results {
		if !h.streamResult(conn, res) {
			return
		}
	}
	h.writeEnvelope(conn, wsEnvelope{Type: "done"})
}

// columnMeta describes one column in a "result" envelope.
type columnMeta struct {
	Name string                   `json:"name"`
	Type searchgateway.ColumnType `json:"type"`
}

// streamResult sends a result's column layout followed by one envelope per
// row. Returns false when a write fails and the socket should be dropped.
func (h *Handler) streamResult(conn *websocket.Conn, res searchgateway.QueryResult) bool {
	meta := make([]columnMeta, 0, len(res.Columns))
	for _, col := range res.Columns {
		meta = append(meta, columnMeta{Name: col.Name, Type: col.Type})
	}
	if !h.writeEnvelope(conn, wsEnvelope{Type: "result", RefID: res.RefID, Data: gin.H{
		"columns":  meta,
		"rowCount": res.RowCount,
	}}) {
		return false
	}

	for row := 0; row < res.RowCount; row++ {
		values := make([]any, 0, len(res.Columns))
		for _, col := range res.Columns {
			values = append(values, col.Values[row])
		}
		if !h.writeEnvelope(conn, wsEnvelope{Type: "row", RefID: res.RefID, Data: values}) {
			return false
		}
	}
	return true
}

// writeEnvelope sends one envelope with a write deadline.
func (h *Handler) writeEnvelope(conn *websocket.Conn, env wsEnvelope) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(env); err != nil {
		h.log.Infow("ws_write_failed", "err", err)
		return false
	}
	return true
}
