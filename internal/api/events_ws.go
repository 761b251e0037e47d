package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"routeplan/internal/notify"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

const (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 20 * time.Second
	wsWriteWait  = 5 * time.Second
)

// wsMessage is the frame sent to stream clients.
type wsMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// planIDFromEventsPath extracts {id} from /v1/plans/{id}/events.
func planIDFromEventsPath(path string) (string, bool) {
	rest := strings.TrimPrefix(path, "/v1/plans/")
	if rest == path || !strings.HasSuffix(rest, "/events") {
		return "", false
	}
	id := strings.TrimSuffix(rest, "/events")
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

// PlanEventsHandler handles GET /v1/plans/{id}/events. It upgrades to a
// WebSocket and forwards plan events until the plan completes or fails, or
// the client goes away.
func (s *Server) PlanEventsHandler(w http.ResponseWriter, r *http.Request) {
	planID, ok := planIDFromEventsPath(r.URL.Path)
	if !ok {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	ch := s.Broker.Subscribe(planID)
	defer s.Broker.Unsubscribe(planID, ch)

	write := func(m wsMessage) error {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(m)
	}
	if err := write(wsMessage{Type: "connection_ack", Payload: mustJSON(map[string]string{"planId": planID})}); err != nil {
		return
	}

	// Client frames are only read to observe pongs and close.
	gone := make(chan struct{})
	conn.SetReadLimit(1 << 16)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(wsPongWait)) })
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-gone:
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case evt, ok := <-ch:
			if !ok {
				_ = write(wsMessage{Type: "complete"})
				return
			}
			if err := write(wsMessage{Type: evt.Type, Payload: mustJSON(evt.Data)}); err != nil {
				s.Log.Debug("plan stream write failed", zap.String("plan_id", planID), zap.Error(err))
				return
			}
			if evt.Type == notify.TypePlanCompleted || evt.Type == EventPlanFailed {
				_ = write(wsMessage{Type: "complete"})
				_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(wsWriteWait))
				return
			}
		}
	}
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
