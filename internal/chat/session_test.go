package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/domain"
	"ragqa/internal/logging"
	"ragqa/internal/service"
)

type stubPipeline struct {
	results     []domain.RetrievalResult
	answer      string
	retrieveErr error
	composeErr  error
	// onRetrieve runs inside Retrieve, while the session is RETRIEVING.
	onRetrieve func()
	queries    []string
}

func (p *stubPipeline) Retrieve(ctx context.Context, query string) ([]domain.RetrievalResult, error) {
	p.queries = append(p.queries, query)
	if p.onRetrieve != nil {
		p.onRetrieve()
	}
	return p.results, p.retrieveErr
}

func (p *stubPipeline) Compose(ctx context.Context, query string, results []domain.RetrievalResult) (*service.Answer, error) {
	if p.composeErr != nil {
		return nil, p.composeErr
	}
	return &service.Answer{Query: query, Results: results, Text: p.answer}, nil
}

func pidrisPipeline() *stubPipeline {
	return &stubPipeline{
		results: []domain.RetrievalResult{{Document: domain.Document{Position: 0, Text: "Hiking routes near Pidriš"}}},
		answer:  "Trail A, Trail B, Trail C",
	}
}

func TestSessionHappyPath(t *testing.T) {
	ctx := context.Background()
	s := NewSession(pidrisPipeline(), logging.Discard())
	assert.Equal(t, WaitingInput, s.State())

	require.NoError(t, s.Begin("What hiking routes exist near Pidriš?"))
	assert.Equal(t, Retrieving, s.State())
	assert.NotEmpty(t, s.TurnID())

	res, err := s.Retrieve(ctx)
	require.NoError(t, err)
	assert.Len(t, res, 1)
	assert.Equal(t, Generating, s.State())

	ans, err := s.Generate(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Trail A, Trail B, Trail C", ans.Text)
	assert.Equal(t, Displaying, s.State())

	require.NoError(t, s.Displayed())
	assert.Equal(t, WaitingInput, s.State())
}

func TestSessionTurnIDs(t *testing.T) {
	ctx := context.Background()
	s := NewSession(pidrisPipeline(), logging.Discard())

	_, err := s.Ask(ctx, "one")
	require.NoError(t, err)
	first := s.TurnID()
	require.NoError(t, s.Displayed())
	_, err = s.Ask(ctx, "two")
	require.NoError(t, err)

	assert.NotEqual(t, first, s.TurnID())
}

func TestSessionIllegalTransitions(t *testing.T) {
	ctx := context.Background()

	t.Run("Steps out of order", func(t *testing.T) {
		s := NewSession(pidrisPipeline(), logging.Discard())

		_, err := s.Generate(ctx)
		assert.ErrorIs(t, err, ErrIllegalTransition)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)

		_, err = s.Retrieve(ctx)
		assert.ErrorIs(t, err, ErrIllegalTransition)
		assert.ErrorIs(t, s.Displayed(), ErrIllegalTransition)
		assert.Equal(t, WaitingInput, s.State())
	})

	t.Run("Begin while a turn is running", func(t *testing.T) {
		s := NewSession(pidrisPipeline(), logging.Discard())
		require.NoError(t, s.Begin("q"))

		assert.ErrorIs(t, s.Begin("again"), ErrIllegalTransition)
		assert.Equal(t, Retrieving, s.State())
	})

	t.Run("Terminated is final", func(t *testing.T) {
		s := NewSession(pidrisPipeline(), logging.Discard())
		assert.Equal(t, Terminated, s.RequestExit())

		assert.ErrorIs(t, s.Begin("q"), ErrIllegalTransition)
		assert.Equal(t, Terminated, s.RequestExit())
		assert.Equal(t, Terminated, s.State())
	})

	t.Run("Empty query stays idle", func(t *testing.T) {
		s := NewSession(pidrisPipeline(), logging.Discard())

		err := s.Begin("   ")

		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
		assert.NotErrorIs(t, err, ErrIllegalTransition)
		assert.Equal(t, WaitingInput, s.State())
	})
}

func TestSessionFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("Retrieval failure returns to waiting", func(t *testing.T) {
		p := pidrisPipeline()
		p.retrieveErr = domain.Unavailable("stub", errors.New("down"))
		s := NewSession(p, logging.Discard())

		_, err := s.Ask(ctx, "q")

		assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
		assert.Equal(t, WaitingInput, s.State())
	})

	t.Run("Generation failure returns to waiting", func(t *testing.T) {
		p := pidrisPipeline()
		p.composeErr = &domain.GenerationError{PromptLen: 10, Err: errors.New("oom")}
		s := NewSession(p, logging.Discard())

		_, err := s.Ask(ctx, "q")

		assert.ErrorIs(t, err, domain.ErrGenerationFailed)
		assert.Equal(t, WaitingInput, s.State())
	})
}

func TestSessionCooperativeExit(t *testing.T) {
	ctx := context.Background()

	t.Run("Exit during a turn waits for display", func(t *testing.T) {
		p := pidrisPipeline()
		s := NewSession(p, logging.Discard())
		p.onRetrieve = func() { assert.Equal(t, Retrieving, s.RequestExit()) }

		ans, err := s.Ask(ctx, "q")

		require.NoError(t, err)
		assert.Equal(t, "Trail A, Trail B, Trail C", ans.Text)
		assert.Equal(t, Displaying, s.State())
		require.NoError(t, s.Displayed())
		assert.Equal(t, Terminated, s.State())
	})

	t.Run("Exit during a failing turn terminates after the failure", func(t *testing.T) {
		p := pidrisPipeline()
		p.retrieveErr = errors.New("boom")
		s := NewSession(p, logging.Discard())
		p.onRetrieve = func() { s.RequestExit() }

		_, err := s.Ask(ctx, "q")

		assert.Error(t, err)
		assert.Equal(t, Terminated, s.State())
	})
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "WAITING_INPUT", WaitingInput.String())
	assert.Equal(t, "TERMINATED", Terminated.String())
	assert.Equal(t, "State(9)", State(9).String())
}
