// internal/solver/backend.go
//
// Solver backends.
//   - Local runs the bruteforce search in-process.
//   - HTTP posts the request as JSON to a remote solver service.

package solver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/robalobadob/rings/internal/bruteforce"
	"github.com/robalobadob/rings/internal/grid"
	"github.com/robalobadob/rings/internal/movement"
)

var validate = validator.New()

// ValidateRequest checks a request's shape before it is solved.
func ValidateRequest(req Request) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", bruteforce.ErrInvalidBoard, err)
	}
	return nil
}

// Local answers requests with an in-process bruteforce.Solver.
type Local struct {
	Timeout time.Duration
}

// Solve never returns a transport error; search failures become
// no_solution or error replies.
func (l Local) Solve(ctx context.Context, req Request) (*Response, error) {
	if err := ValidateRequest(req); err != nil {
		return &Response{Status: StatusError, Error: err.Error()}, nil
	}
	s, err := bruteforce.New(grid.Dims{Rings: req.NumRings, Angles: req.Angles}, &bruteforce.Options{
		MaxMoves: req.MaxMoves,
		Timeout:  l.Timeout,
	})
	if err != nil {
		return &Response{Status: StatusError, Error: err.Error()}, nil
	}
	sol, err := s.Solve(ctx, req.Rings)
	switch {
	case errors.Is(err, bruteforce.ErrNoSolution):
		return &Response{Status: StatusNoSolution}, nil
	case err != nil:
		return &Response{Status: StatusError, Error: err.Error()}, nil
	}
	return &Response{
		Status:       StatusSolved,
		Moves:        movement.ToWireList(sol.Moves),
		Result:       sol.Result,
		JumpRows:     sol.JumpRows,
		HammerGroups: sol.HammerGroups,
	}, nil
}

// HTTP talks to a solver service at URL.
type HTTP struct {
	URL    string
	Client *http.Client
}

// NewHTTP returns an HTTP backend with a bounded client timeout.
func NewHTTP(url string, timeout time.Duration) *HTTP {
	return &HTTP{URL: url, Client: &http.Client{Timeout: timeout}}
}

func (h *HTTP) Solve(ctx context.Context, req Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	res, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("solver request: %w", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("solver response: %w", err)
	}
	var out Response
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if res.StatusCode >= 400 && out.Status == "" {
		return nil, fmt.Errorf("solver returned HTTP %d", res.StatusCode)
	}
	return &out, nil
}
