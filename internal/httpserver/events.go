// internal/httpserver/events.go
//
// Websocket stream of session events (GET /session/{id}/events).
// The first message is a "snapshot"; after that every session event is
// forwarded as JSON. Clients may send {"action":"ping"} and get a pong.
// The stream ends when the client disconnects or the session closes.

package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/rings/internal/session"
)

const writeWait = 5 * time.Second

func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			o := r.Header.Get("Origin")
			return o == "" || o == s.cfg.ClientOrigin
		},
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil || !s.owner(r).owns(sess.Owner) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	snap, err := sess.Snapshot(r.Context())
	if err != nil {
		writeSessionError(w, err)
		return
	}

	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("websocket upgrade")
		return
	}
	events, unsubscribe := sess.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	pongs := make(chan struct{}, 1)

	// Cleanup on disconnect
	defer func() {
		cancel()
		unsubscribe()
		_ = conn.Close()
	}()

	go writeEvents(ctx, cancel, conn, snap, events, pongs)
	readEvents(ctx, cancel, conn, pongs)
}

// writeEvents is the connection's only writer. Closing the connection on
// exit unblocks the reader.
func writeEvents(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, snap *session.Snapshot, events <-chan session.Event, pongs <-chan struct{}) {
	defer func() {
		cancel()
		_ = conn.Close()
	}()

	send := func(v any) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(v) == nil
	}
	if !send(map[string]any{"type": "snapshot", "snapshot": snap}) {
		return
	}
	for {
		select {
		case e, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
					time.Now().Add(writeWait))
				return
			}
			if !send(e) {
				return
			}
		case <-pongs:
			if !send(map[string]string{"type": "pong"}) {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// readEvents consumes client messages until the connection fails.
func readEvents(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, pongs chan<- struct{}) {
	defer cancel()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Msg("websocket read")
			}
			return
		}
		var cmd struct {
			Action string `json:"action"`
		}
		if err := json.Unmarshal(msg, &cmd); err != nil {
			continue
		}
		if cmd.Action == "ping" {
			select {
			case pongs <- struct{}{}:
			case <-ctx.Done():
				return
			default:
			}
		}
	}
}
