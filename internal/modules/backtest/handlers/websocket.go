package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"nhooyr.io/websocket"
)

// HandleEvents streams run lifecycle events (started, progress, completed,
// failed) over a websocket. The client receives every run's events and
// filters by run_id; runs are short-lived, so connections typically span a
// single run anyway.
func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// The HTTP layer already enforces CORS for the API.
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	eventCh, unsubscribe := h.eventManager.Subscribe(64)
	defer unsubscribe()

	h.log.Debug().Msg("Websocket client subscribed to run events")

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case event, ok := <-eventCh:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}

			payload, err := json.Marshal(event)
			if err != nil {
				h.log.Error().Err(err).Msg("Failed to marshal event")
				continue
			}

			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			writeErr := conn.Write(writeCtx, websocket.MessageText, payload)
			cancel()
			if writeErr != nil {
				// Client gone or too slow, drop the connection.
				return
			}
		}
	}
}
