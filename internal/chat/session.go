package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ragqa/internal/domain"
	"ragqa/internal/service"
)

// State is a stage of the question loop.
type State int

const (
	WaitingInput State = iota
	Retrieving
	Generating
	Displaying
	Terminated
)

func (s State) String() string {
	switch s {
	case WaitingInput:
		return "WAITING_INPUT"
	case Retrieving:
		return "RETRIEVING"
	case Generating:
		return "GENERATING"
	case Displaying:
		return "DISPLAYING"
	case Terminated:
		return "TERMINATED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ErrIllegalTransition is returned when a step is called out of order.
var ErrIllegalTransition = errors.New("illegal state transition")

// Pipeline is the retrieval and generation work behind one turn.
type Pipeline interface {
	Retrieve(ctx context.Context, query string) ([]domain.RetrievalResult, error)
	Compose(ctx context.Context, query string, results []domain.RetrievalResult) (*service.Answer, error)
}

// Session drives one user through
// WAITING_INPUT → RETRIEVING → GENERATING → DISPLAYING → WAITING_INPUT.
// Exit requests are cooperative: outside WAITING_INPUT they take effect at
// the next turn boundary.
type Session struct {
	pipeline Pipeline
	logger   *slog.Logger

	mu          sync.Mutex
	state       State
	exitPending bool
	turnID      string
	query       string
	results     []domain.RetrievalResult
	started     time.Time
}

func NewSession(p Pipeline, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{pipeline: p, logger: logger, state: WaitingInput}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// TurnID identifies the current or most recent turn.
func (s *Session) TurnID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turnID
}

// Begin accepts a query and moves to RETRIEVING.
func (s *Session) Begin(query string) error {
	query = strings.TrimSpace(query)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.transition(WaitingInput, Retrieving); err != nil {
		return err
	}
	if query == "" {
		s.state = WaitingInput
		return domain.InvalidArgument("empty query")
	}
	s.turnID = uuid.NewString()
	s.query = query
	s.results = nil
	s.started = time.Now()
	s.logger.Info("turn started", "turn", s.turnID, "query_len", len(query))
	return nil
}

// Retrieve runs retrieval for the current query and moves to GENERATING.
func (s *Session) Retrieve(ctx context.Context) ([]domain.RetrievalResult, error) {
	s.mu.Lock()
	if s.state != Retrieving {
		defer s.mu.Unlock()
		return nil, s.illegal(s.state, Generating)
	}
	query, turn := s.query, s.turnID
	s.mu.Unlock()

	results, err := s.pipeline.Retrieve(ctx, query)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.fail(turn, "retrieve", err)
		return nil, err
	}
	s.results = results
	s.state = Generating
	s.logger.Debug("documents retrieved", "turn", turn, "count", len(results))
	return results, nil
}

// Generate composes the answer and moves to DISPLAYING.
func (s *Session) Generate(ctx context.Context) (*service.Answer, error) {
	s.mu.Lock()
	if s.state != Generating {
		defer s.mu.Unlock()
		return nil, s.illegal(s.state, Displaying)
	}
	query, results, turn := s.query, s.results, s.turnID
	s.mu.Unlock()

	answer, err := s.pipeline.Compose(ctx, query, results)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.fail(turn, "generate", err)
		return nil, err
	}
	s.state = Displaying
	return answer, nil
}

// Displayed ends the turn. The session terminates here if an exit was
// requested while the turn was running.
func (s *Session) Displayed() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Displaying {
		return s.illegal(s.state, WaitingInput)
	}
	s.logger.Info("turn finished", "turn", s.turnID, "elapsed", time.Since(s.started).String())
	s.endTurn()
	return nil
}

// RequestExit terminates the session now when it is idle, otherwise at the
// end of the running turn. It returns the resulting state.
func (s *Session) RequestExit() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case WaitingInput:
		s.state = Terminated
	case Terminated:
	default:
		s.exitPending = true
	}
	return s.state
}

// Ask runs a whole turn up to DISPLAYING. The caller shows the answer and
// then calls Displayed.
func (s *Session) Ask(ctx context.Context, query string) (*service.Answer, error) {
	if err := s.Begin(query); err != nil {
		return nil, err
	}
	if _, err := s.Retrieve(ctx); err != nil {
		return nil, err
	}
	return s.Generate(ctx)
}

func (s *Session) transition(from, to State) error {
	if s.state != from {
		return s.illegal(s.state, to)
	}
	s.state = to
	return nil
}

func (s *Session) illegal(from, to State) error {
	return fmt.Errorf("%w: %w: %s -> %s", domain.ErrInvalidArgument, ErrIllegalTransition, from, to)
}

// fail abandons the turn. Callers hold mu.
func (s *Session) fail(turn, step string, err error) {
	s.logger.Warn("turn failed", "turn", turn, "step", step, "error", err)
	s.endTurn()
}

func (s *Session) endTurn() {
	s.results = nil
	if s.exitPending {
		s.state = Terminated
		return
	}
	s.state = WaitingInput
}
