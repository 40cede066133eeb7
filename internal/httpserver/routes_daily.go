// internal/httpserver/routes_daily.go
//
// HTTP routes for the daily puzzle.
// Exposes three endpoints under /daily:
//   - POST /daily/new         → start (or resume) today's daily session
//   - POST /daily/check       → check whether the daily session is now solvable
//   - GET  /daily/leaderboard → top 20 results for today (or ?date=YYYY-MM-DD)
//
// Each player records one result per day (enforced by DB + in-memory map).
// Daily sessions are locked, so the layout only changes through moves.
// The layout is deterministic for the UTC date and the server salt. A daily
// counts as solved once its current layout meets the goal with no further
// moves; the player's move count and elapsed time go on the leaderboard.

package httpserver

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/rings/internal/bruteforce"
	"github.com/robalobadob/rings/internal/daily"
)

// dailyServer wraps dependencies for /daily endpoints.
type dailyServer struct {
	srv      *Server
	store    *daily.Store
	sessions map[string]string // userID|date → session id
	mu       sync.Mutex        // guards sessions
}

// mountDaily registers all /daily routes.
func (s *Server) mountDaily(r chi.Router) {
	dd := &dailyServer{
		srv:      s,
		store:    daily.NewStore(s.db),
		sessions: make(map[string]string),
	}
	r.Post("/daily/new", dd.handleNew)
	r.Post("/daily/check", dd.handleCheck)
	r.Get("/daily/leaderboard", dd.handleLeaderboard)
}

func dailyKey(userID, date string) string { return userID + "|" + date }

// handleNew returns today's daily session for the caller, creating it if
// needed. A player who already has a result for today gets 409.
func (d *dailyServer) handleNew(w http.ResponseWriter, r *http.Request) {
	cfg := d.srv.cfg
	now := time.Now().UTC()
	date := daily.DateKey(now)
	user := d.srv.ownerID(w, r)

	played, err := d.store.AlreadyPlayed(r.Context(), user, date)
	if err != nil {
		log.Error().Err(err).Msg("daily already played")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	if played {
		writeError(w, http.StatusConflict, "already_played")
		return
	}

	d.mu.Lock()
	id, ok := d.sessions[dailyKey(user, date)]
	d.mu.Unlock()
	if ok {
		if sess, err := d.srv.store.Get(r.Context(), id); err == nil {
			d.srv.respondSnapshot(w, r, sess, http.StatusOK)
			return
		}
	}

	rings, err := daily.Layout(now, cfg.Daily.Salt, cfg.Dims, cfg.Daily.Markers)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	sess, err := d.srv.newSession(r, user, cfg.Dims, rings, "daily-"+date, true)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	d.mu.Lock()
	d.sessions[dailyKey(user, date)] = sess.ID
	d.mu.Unlock()
	d.srv.respondSnapshot(w, r, sess, http.StatusCreated)
}

type dailyCheckReq struct {
	SessionID string `json:"sessionId" validate:"required"`
}

type dailyCheckRes struct {
	Solved    bool   `json:"solved"`
	Recorded  bool   `json:"recorded"`
	Moves     int    `json:"moves"`
	ElapsedMs int    `json:"elapsedMs"`
	Date      string `json:"date"`
}

// handleCheck evaluates the daily session's current layout and records a
// result the first time it is solved.
func (d *dailyServer) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req dailyCheckReq
	if err := decode(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	date := daily.DateKey(time.Now())
	user := d.srv.ownerID(w, r)

	d.mu.Lock()
	id, ok := d.sessions[dailyKey(user, date)]
	d.mu.Unlock()
	if !ok || id != req.SessionID {
		writeError(w, http.StatusNotFound, "no_daily_session")
		return
	}
	sess, err := d.srv.store.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	snap, err := sess.Snapshot(r.Context())
	if err != nil {
		writeSessionError(w, err)
		return
	}
	if snap.Busy {
		writeError(w, http.StatusConflict, "busy")
		return
	}

	res := dailyCheckRes{Moves: snap.Moves, Date: date}
	bf, err := bruteforce.New(snap.Dims, &bruteforce.Options{MaxMoves: 0})
	if err != nil {
		writeSessionError(w, err)
		return
	}
	if _, err := bf.Solve(r.Context(), snap.Rings); err != nil {
		if errors.Is(err, bruteforce.ErrNoSolution) {
			writeJSON(w, http.StatusOK, res)
			return
		}
		writeSessionError(w, err)
		return
	}

	res.Solved = true
	res.ElapsedMs = int(time.Since(sess.Created).Milliseconds())
	inserted, err := d.store.InsertResult(r.Context(), daily.Result{
		UserID:    user,
		Date:      date,
		SessionID: id,
		Moves:     snap.Moves,
		ElapsedMs: res.ElapsedMs,
	})
	if err != nil {
		log.Error().Err(err).Str("sessionId", id).Msg("insert daily result")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	res.Recorded = inserted
	if inserted {
		d.srv.finishSessionRow(d.srv.owner(r), id, snap.Moves, "solved")
		if me := currentUser(r); me != nil {
			if _, err := d.srv.db.Exec(`UPDATE users SET dailies_solved = dailies_solved + 1 WHERE id=?`, me.ID); err != nil {
				log.Warn().Err(err).Str("user", me.ID).Msg("bump dailies solved")
			}
		}
	}
	writeJSON(w, http.StatusOK, res)
}

// handleLeaderboard lists the best results for a date (default today).
func (d *dailyServer) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = daily.DateKey(time.Now())
	} else if _, err := time.Parse("2006-01-02", date); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date")
		return
	}
	rows, err := d.store.Leaderboard(r.Context(), date, 20)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": date, "results": rows})
}
