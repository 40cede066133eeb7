// internal/httpserver/routes_solver.go
//
// POST /solver/solve serves the built-in brute-force solver over the
// gateway wire format, so another rings server can use this one as its
// remote backend. Requests are rate limited.

package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/rings/internal/solver"
)

func (s *Server) mountSolver(r chi.Router) {
	local := solver.Local{Timeout: s.cfg.Solver.Timeout}
	r.Post("/solver/solve", func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate_limited")
			return
		}
		var req solver.Request
		if err := decode(r, &req); err != nil {
			writeDecodeError(w, err)
			return
		}
		resp, err := local.Solve(r.Context(), req)
		if err != nil {
			log.Error().Err(err).Msg("solver service")
			writeError(w, http.StatusInternalServerError, "solver_error")
			return
		}
		writeJSON(w, http.StatusOK, resp)
	})
}
