// internal/httpserver/routes_session.go
//
// HTTP routes for puzzle sessions.
//   - POST   /session/new           → start a session (empty, preset, random preset or raw rings)
//   - GET    /session/{id}          → snapshot
//   - DELETE /session/{id}          → close
//   - GET    /session/{id}/marker   → is there a marker at ?r=&th=
//   - POST   /session/{id}/marker   → toggle a marker
//   - POST   /session/{id}/layout   → replace the whole marker layout
//   - POST   /session/{id}/move     → submit a move
//   - POST   /session/{id}/undo     → undo the newest move
//   - POST   /session/{id}/plan     → grow the planned (previewed) move
//   - POST   /session/{id}/rewind   → drop the planned move
//   - POST   /session/{id}/commit   → play the planned move
//   - POST   /session/{id}/solve    → ask the solver gateway
//   - POST   /session/{id}/play     → play a move list in order
//
// Moves are accepted by default without waiting for the animation; send
// "wait": true to get the snapshot after the move finished.
//
// Sessions belong to whoever started them; other callers get 404. Daily
// sessions are locked: markers and layout cannot be edited.

package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/rings/internal/grid"
	"github.com/robalobadob/rings/internal/movement"
	"github.com/robalobadob/rings/internal/presets"
	"github.com/robalobadob/rings/internal/scheduler"
	"github.com/robalobadob/rings/internal/session"
	"github.com/robalobadob/rings/internal/solver"
	"github.com/robalobadob/rings/internal/store"
)

func (s *Server) mountSessions(r chi.Router) {
	r.Post("/session/new", s.handleNewSession)
	r.Get("/session/{id}", s.withSession(s.handleSnapshot))
	r.Delete("/session/{id}", s.handleCloseSession)
	r.Get("/session/{id}/marker", s.withSession(s.handleMarkerQuery))
	r.Post("/session/{id}/marker", s.withSession(s.handleMarker))
	r.Post("/session/{id}/layout", s.withSession(s.handleLayout))
	r.Post("/session/{id}/move", s.withSession(s.handleMove))
	r.Post("/session/{id}/undo", s.withSession(s.handleUndo))
	r.Post("/session/{id}/plan", s.withSession(s.handlePlan))
	r.Post("/session/{id}/rewind", s.withSession(s.handleRewind))
	r.Post("/session/{id}/commit", s.withSession(s.handleCommit))
	r.Post("/session/{id}/solve", s.withSession(s.handleSolve))
	r.Post("/session/{id}/play", s.withSession(s.handlePlay))
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *session.Session)

// withSession resolves {id} to a live session owned by the caller.
func (s *Server) withSession(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil || !s.owner(r).owns(sess.Owner) {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		h(w, r, sess)
	}
}

// newSession creates and registers a session on rings and records its
// owner row (user or anonymous) for history/stats.
func (s *Server) newSession(r *http.Request, owner string, d grid.Dims, rings []uint64, preset string, locked bool) (*session.Session, error) {
	sess, err := session.New(session.Options{
		Dims:          d,
		Speeds:        s.cfg.Speeds,
		FrameInterval: s.cfg.FrameInterval,
		Gateway:       s.gateway,
		Owner:         owner,
		Locked:        locked,
	}, rings)
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(r.Context(), sess); err != nil {
		sess.Close()
		return nil, err
	}
	s.recordSession(r, sess, preset, rings)
	return sess, nil
}

// ------------------------------------------------------------------ new

type newSessionReq struct {
	Preset string     `json:"preset"`
	Random bool       `json:"random"`
	Rings  []uint64   `json:"rings"`
	Dims   *grid.Dims `json:"dims"`
}

func (s *Server) handleNewSession(w http.ResponseWriter, r *http.Request) {
	var req newSessionReq
	if err := decode(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	d := s.cfg.Dims
	if req.Dims != nil {
		d = *req.Dims
	}
	rings := req.Rings
	name := ""
	switch {
	case req.Preset != "":
		p, err := presets.Get(req.Preset)
		if err != nil {
			writeError(w, http.StatusNotFound, "unknown_preset")
			return
		}
		d, rings, name = p.Dims, p.Rings, p.Name
	case req.Random:
		p, err := presets.Random(d)
		if err != nil {
			writeError(w, http.StatusNotFound, "no_preset_for_shape")
			return
		}
		rings, name = p.Rings, p.Name
	}

	sess, err := s.newSession(r, s.ownerID(w, r), d, rings, name, false)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	s.respondSnapshot(w, r, sess, http.StatusCreated)
}

// ------------------------------------------------------------- snapshot

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	s.respondSnapshot(w, r, sess, http.StatusOK)
}

func (s *Server) respondSnapshot(w http.ResponseWriter, r *http.Request, sess *session.Session, code int) {
	snap, err := sess.Snapshot(r.Context())
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, code, snap)
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	o := s.owner(r)
	sess, err := s.store.Get(r.Context(), id)
	if err != nil || !o.owns(sess.Owner) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if snap, err := sess.Snapshot(r.Context()); err == nil {
		s.finishSessionRow(o, sess.ID, snap.Moves, "closed")
	}
	if err := s.store.Delete(r.Context(), id); err != nil && !errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "close_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// --------------------------------------------------------------- marker

type markerReq struct {
	R  *int `json:"r" validate:"required"`
	Th *int `json:"th" validate:"required"`
}

func (s *Server) handleMarkerQuery(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	q := r.URL.Query()
	ring, err1 := strconv.Atoi(q.Get("r"))
	th, err2 := strconv.Atoi(q.Get("th"))
	if err1 != nil || err2 != nil {
		writeError(w, http.StatusBadRequest, "invalid_position")
		return
	}
	on, err := sess.Marker(r.Context(), grid.Position{R: ring, Th: th})
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"hasMarker": on})
}

func (s *Server) handleMarker(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req markerReq
	if err := decode(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	on, err := sess.ToggleMarker(r.Context(), grid.Position{R: *req.R, Th: *req.Th})
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"hasMarker": on})
}

type layoutReq struct {
	Rings []uint64 `json:"rings" validate:"required"`
}

func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req layoutReq
	if err := decode(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if err := sess.Load(r.Context(), req.Rings); err != nil {
		writeSessionError(w, err)
		return
	}
	s.respondSnapshot(w, r, sess, http.StatusOK)
}

// ----------------------------------------------------------------- move

type moveReq struct {
	Move movement.Wire `json:"move"`
	Mode string        `json:"mode" validate:"omitempty,oneof=none instant normal undo"`
	Wait bool          `json:"wait"`
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req moveReq
	if err := decode(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	m, err := movement.FromWire(req.Move)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	mode, err := scheduler.ParseMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c, err := sess.Move(r.Context(), m, mode)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	s.bumpSessionMoves(s.owner(r), sess.ID, 1)
	s.respondAfter(w, r, sess, c, req.Wait)
}

// respondAfter replies with a snapshot, optionally once c is fulfilled.
func (s *Server) respondAfter(w http.ResponseWriter, r *http.Request, sess *session.Session, c *scheduler.Completion, wait bool) {
	if wait && c != nil {
		if err := c.Wait(r.Context()); err != nil {
			writeSessionError(w, err)
			return
		}
	}
	code := http.StatusOK
	if !wait && c != nil && !c.Resolved() {
		code = http.StatusAccepted
	}
	s.respondSnapshot(w, r, sess, code)
}

// ----------------------------------------------------------------- undo

type waitReq struct {
	Wait bool `json:"wait"`
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req waitReq
	if err := decode(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	c, err := sess.Undo(r.Context())
	if err != nil {
		writeSessionError(w, err)
		return
	}
	s.respondAfter(w, r, sess, c, req.Wait)
}

// ------------------------------------------------------ plan/rewind/commit

type planReq struct {
	Move movement.Wire `json:"move"`
}

type planRes struct {
	Planned *movement.Wire `json:"planned"`
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req planReq
	if err := decode(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	m, err := movement.FromWire(req.Move)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	planned, err := sess.Plan(r.Context(), m)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, planRes{Planned: movement.ToWire(planned)})
}

func (s *Server) handleRewind(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	rev, err := sess.Rewind(r.Context())
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]*movement.Wire{"reverse": movement.ToWire(rev)})
}

type commitReq struct {
	Mode string `json:"mode" validate:"omitempty,oneof=none instant normal undo"`
	Wait bool   `json:"wait"`
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req commitReq
	if err := decode(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	mode, err := scheduler.ParseMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c, committed, err := sess.Commit(r.Context(), mode)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	if committed != nil {
		s.bumpSessionMoves(s.owner(r), sess.ID, 1)
	}
	s.respondAfter(w, r, sess, c, req.Wait)
}

// ---------------------------------------------------------------- solve

type solveReq struct {
	MaxMoves *int `json:"maxMoves" validate:"omitempty,min=0,max=6"`
}

type solveRes struct {
	Status       string          `json:"status"`
	Moves        []movement.Wire `json:"moves"`
	Result       []uint64        `json:"result,omitempty"`
	JumpRows     int             `json:"jumpRows"`
	HammerGroups int             `json:"hammerGroups"`
}

func (s *Server) handleSolve(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req solveReq
	if err := decode(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	budget := s.cfg.Solver.MaxMoves
	if req.MaxMoves != nil {
		budget = *req.MaxMoves
	}
	sol, err := sess.Solve(r.Context(), budget)
	if errors.Is(err, solver.ErrNoSolution) {
		writeJSON(w, http.StatusOK, solveRes{Status: solver.StatusNoSolution, Moves: []movement.Wire{}})
		return
	}
	if err != nil {
		writeSessionError(w, err)
		return
	}
	result, err := sol.Result.Encode()
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, solveRes{
		Status:       solver.StatusSolved,
		Moves:        movement.ToWireList(sol.Moves),
		Result:       result,
		JumpRows:     sol.JumpRows,
		HammerGroups: sol.HammerGroups,
	})
}

// ----------------------------------------------------------------- play

type playReq struct {
	Moves []movement.Wire `json:"moves" validate:"required,min=1,max=64"`
	Mode  string          `json:"mode" validate:"omitempty,oneof=none instant normal undo"`
	Wait  bool            `json:"wait"`
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req playReq
	if err := decode(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	moves, err := movement.FromWireList(req.Moves)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	mode, err := scheduler.ParseMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	done, err := sess.Play(r.Context(), moves, mode)
	if err != nil {
		writeSessionError(w, err)
		return
	}

	// Count what was actually submitted, after the reply if need be.
	o := s.owner(r)
	finished := make(chan session.PlayResult, 1)
	go func() {
		select {
		case res := <-done:
			s.bumpSessionMoves(o, sess.ID, res.Played)
			finished <- res
		case <-sess.Done():
		}
	}()

	if !req.Wait {
		s.respondSnapshot(w, r, sess, http.StatusAccepted)
		return
	}
	select {
	case res := <-finished:
		if res.Err != nil {
			writeSessionError(w, res.Err)
			return
		}
	case <-sess.Done():
		writeSessionError(w, session.ErrClosed)
		return
	case <-r.Context().Done():
		writeSessionError(w, r.Context().Err())
		return
	}
	s.respondSnapshot(w, r, sess, http.StatusOK)
}

// --------------------------------------------------------------- errors

// writeSessionError maps puzzle errors to HTTP statuses.
func writeSessionError(w http.ResponseWriter, err error) {
	var backend *solver.BackendError
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found")
	case errors.Is(err, session.ErrClosed):
		writeError(w, http.StatusGone, "session_closed")
	case errors.Is(err, scheduler.ErrBusy):
		writeError(w, http.StatusConflict, "busy")
	case errors.Is(err, solver.ErrInFlight):
		writeError(w, http.StatusConflict, "solver_busy")
	case errors.Is(err, scheduler.ErrNothingToUndo):
		writeError(w, http.StatusConflict, "nothing_to_undo")
	case errors.Is(err, session.ErrNothingPlanned):
		writeError(w, http.StatusConflict, "nothing_planned")
	case errors.Is(err, session.ErrLocked):
		writeError(w, http.StatusForbidden, "locked")
	case errors.Is(err, session.ErrNoSolver):
		writeError(w, http.StatusServiceUnavailable, "no_solver")
	case errors.Is(err, grid.ErrIndex),
		errors.Is(err, grid.ErrInvalidShape),
		errors.Is(err, grid.ErrEncoding),
		errors.Is(err, grid.ErrEncodingWidth),
		errors.Is(err, movement.ErrNoMove),
		errors.Is(err, movement.ErrNonPositiveAmount),
		errors.Is(err, movement.ErrIncompatibleMove),
		errors.Is(err, movement.ErrMalformedMove):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &backend), errors.Is(err, solver.ErrMalformedResponse):
		log.Warn().Err(err).Msg("solver backend")
		writeError(w, http.StatusBadGateway, "solver_error")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		writeError(w, http.StatusGatewayTimeout, "timeout")
	default:
		log.Error().Err(err).Msg("session request")
		writeError(w, http.StatusInternalServerError, "server_error")
	}
}

func writeDecodeError(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		writeError(w, http.StatusBadRequest, "invalid_"+verrs[0].Field())
		return
	}
	writeError(w, http.StatusBadRequest, "bad_json")
}

// ------------------------------------------------------------ persistence

// recordSession inserts the owner row for a new session (best effort).
func (s *Server) recordSession(r *http.Request, sess *session.Session, preset string, rings []uint64) {
	if s.db == nil {
		return
	}
	layout := encodeLayout(rings)
	now := sess.Created.Format(time.RFC3339)
	d := sess.Dims()
	if me := currentUser(r); me != nil {
		if _, err := s.db.Exec(`INSERT INTO sessions (id, user_id, preset, rings, angles, layout, started_at)
		                        VALUES (?,?,?,?,?,?,?)`, sess.ID, me.ID, preset, d.Rings, d.Angles, layout, now); err != nil {
			log.Warn().Err(err).Str("sessionId", sess.ID).Msg("insert user session row")
		}
		if _, err := s.db.Exec(`UPDATE users SET sessions_played = sessions_played + 1 WHERE id=?`, me.ID); err != nil {
			log.Warn().Err(err).Str("user", me.ID).Msg("bump sessions played")
		}
		return
	}
	if _, err := s.db.Exec(`INSERT INTO sessions (id, anonymous_id, preset, rings, angles, layout, started_at)
	                        VALUES (?,?,?,?,?,?,?)`, sess.ID, sess.Owner, preset, d.Rings, d.Angles, layout, now); err != nil {
		log.Warn().Err(err).Str("sessionId", sess.ID).Msg("insert anon session row")
	}
}

// bumpSessionMoves counts n submitted moves on the owner's session row and,
// for a signed-in owner, on the user.
func (s *Server) bumpSessionMoves(o requestOwner, id string, n int) {
	if s.db == nil || n <= 0 {
		return
	}
	ownerClause, ownerArg := o.clause()
	tx, err := s.db.Begin()
	if err != nil {
		log.Warn().Err(err).Msg("begin bump moves")
		return
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.Exec(`UPDATE sessions SET moves = moves + ? WHERE id=? AND `+ownerClause, n, id, ownerArg); err != nil {
		log.Warn().Err(err).Msg("update session moves")
	}
	if o.userID != "" {
		if _, err := tx.Exec(`UPDATE users SET moves_total = moves_total + ? WHERE id=?`, n, o.userID); err != nil {
			log.Warn().Err(err).Str("user", o.userID).Msg("update user moves")
		}
	}
	_ = tx.Commit()
}

func (s *Server) finishSessionRow(o requestOwner, id string, moves int, status string) {
	if s.db == nil {
		return
	}
	ownerClause, ownerArg := o.clause()
	if _, err := s.db.Exec(`UPDATE sessions SET status=?, finished_at=? WHERE id=? AND finished_at IS NULL AND `+ownerClause,
		status, time.Now().UTC().Format(time.RFC3339), id, ownerArg); err != nil {
		log.Warn().Err(err).Str("sessionId", id).Int("moves", moves).Msg("finish session row")
	}
}
