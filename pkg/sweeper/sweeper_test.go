package sweeper

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdd_RejectsDuplicatesAndBadPatterns(t *testing.T) {
	s := New(0)
	noop := func(context.Context) (int64, error) { return 0, nil }

	require.NoError(t, s.Add("dedup", "@every 1h", noop))
	assert.Error(t, s.Add("dedup", "@every 1h", noop))
	assert.Error(t, s.Add("traces", "not a pattern", noop))
	assert.Equal(t, 1, s.Len())
}

func TestRun_RecoversFromPanicsAndErrors(t *testing.T) {
	s := New(0)
	calls := 0

	assert.NotPanics(t, func() {
		s.Run("boom", func(context.Context) (int64, error) {
			calls++
			panic("sweep exploded")
		})
	})
	s.Run("err", func(ctx context.Context) (int64, error) {
		calls++
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		return 0, errors.New("db down")
	})
	assert.Equal(t, 2, calls)
}
