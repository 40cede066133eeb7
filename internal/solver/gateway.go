// internal/solver/gateway.go
//
// Gateway between a puzzle grid and an external solver.
// Responsibilities:
//   - Encode the grid as one integer per ring and send it with a move budget.
//   - Decode the reply into moves and a resulting grid.
//   - Allow one in-flight request per gateway.
//   - Turn malformed replies into ErrMalformedResponse; never drop them.
//
// Wire format (JSON):
//   request:  {"rings":[...], "numRings":4, "angles":12, "maxMoves":3}
//   response: {"status":"solved","moves":[...],"result":[...]}
//             {"status":"no_solution"}
//             {"status":"error","error":"..."}

package solver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/semaphore"

	"github.com/robalobadob/rings/internal/grid"
	"github.com/robalobadob/rings/internal/movement"
)

var (
	ErrInFlight          = errors.New("solver request already in flight")
	ErrNoSolution        = errors.New("no solution within move budget")
	ErrMalformedResponse = errors.New("malformed solver response")
)

// Response statuses.
const (
	StatusSolved     = "solved"
	StatusNoSolution = "no_solution"
	StatusError      = "error"
)

// BackendError carries the error payload of a solver reply.
type BackendError struct {
	Message string
}

func (e *BackendError) Error() string { return "solver error: " + e.Message }

// Request is sent to the solver.
type Request struct {
	Rings    []uint64 `json:"rings" validate:"required,min=1"`
	NumRings int      `json:"numRings" validate:"min=1"`
	Angles   int      `json:"angles" validate:"min=2,max=64"`
	MaxMoves int      `json:"maxMoves" validate:"min=0,max=6"`
}

// Response is the solver's reply.
type Response struct {
	Status       string          `json:"status"`
	Moves        []movement.Wire `json:"moves,omitempty"`
	Result       []uint64        `json:"result,omitempty"`
	JumpRows     int             `json:"jumpRows,omitempty"`
	HammerGroups int             `json:"hammerGroups,omitempty"`
	Error        string          `json:"error,omitempty"`
}

// Backend performs a solve request.
type Backend interface {
	Solve(ctx context.Context, req Request) (*Response, error)
}

// Solution is a validated solver answer.
type Solution struct {
	Moves        []movement.Move
	Result       *grid.Grid
	JumpRows     int
	HammerGroups int
}

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rings_solver_requests_total",
		Help: "Solver gateway requests by outcome",
	}, []string{"outcome"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rings_solver_request_duration_seconds",
		Help:    "Solver gateway round trip duration",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10},
	})
)

// Gateway forwards grids to a Backend, one request at a time.
type Gateway struct {
	backend Backend
	sem     *semaphore.Weighted
}

// NewGateway wraps backend.
func NewGateway(backend Backend) *Gateway {
	return &Gateway{backend: backend, sem: semaphore.NewWeighted(1)}
}

// Solve asks the solver for at most budget moves that solve g.
// g is only read before the request is sent; pass a snapshot if other
// goroutines may mutate it.
func (gw *Gateway) Solve(ctx context.Context, g *grid.Grid, budget int) (*Solution, error) {
	if !gw.sem.TryAcquire(1) {
		requestsTotal.WithLabelValues("in_flight").Inc()
		return nil, ErrInFlight
	}
	defer gw.sem.Release(1)

	rings, err := g.Encode()
	if err != nil {
		return nil, err
	}
	d := g.Dims()
	req := Request{Rings: rings, NumRings: d.Rings, Angles: d.Angles, MaxMoves: budget}

	start := time.Now()
	resp, err := gw.backend.Solve(ctx, req)
	requestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		requestsTotal.WithLabelValues("transport_error").Inc()
		return nil, err
	}

	sol, err := Decode(d, budget, resp)
	switch {
	case err == nil:
		requestsTotal.WithLabelValues("solved").Inc()
	case errors.Is(err, ErrNoSolution):
		requestsTotal.WithLabelValues("no_solution").Inc()
	default:
		requestsTotal.WithLabelValues("error").Inc()
	}
	return sol, err
}

// Decode validates a solver reply for a grid of shape d and budget moves.
func Decode(d grid.Dims, budget int, resp *Response) (*Solution, error) {
	if resp == nil {
		return nil, fmt.Errorf("%w: empty response", ErrMalformedResponse)
	}
	switch resp.Status {
	case StatusNoSolution:
		return nil, ErrNoSolution
	case StatusError:
		return nil, &BackendError{Message: resp.Error}
	case StatusSolved:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrMalformedResponse, resp.Status)
	}

	if len(resp.Moves) > budget {
		return nil, fmt.Errorf("%w: %d moves exceed budget %d", ErrMalformedResponse, len(resp.Moves), budget)
	}
	moves, err := movement.FromWireList(resp.Moves)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	for i, m := range moves {
		if err := movement.Validate(m, d); err != nil {
			return nil, fmt.Errorf("%w: move %d: %v", ErrMalformedResponse, i, err)
		}
	}
	result, err := grid.Decode(d, resp.Result)
	if err != nil {
		return nil, fmt.Errorf("%w: result: %v", ErrMalformedResponse, err)
	}
	return &Solution{
		Moves:        moves,
		Result:       result,
		JumpRows:     resp.JumpRows,
		HammerGroups: resp.HammerGroups,
	}, nil
}
