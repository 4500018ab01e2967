package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scripted returns errs in order, then nil.
type scripted struct {
	errs  []error
	calls int
}

func (s *scripted) Send(context.Context, string, string) error {
	s.calls++
	if len(s.errs) == 0 {
		return nil
	}
	err := s.errs[0]
	s.errs = s.errs[1:]
	return err
}

func TestRetry_SucceedsAfterRetry(t *testing.T) {
	f := &scripted{errs: []error{errors.New("first fail")}}
	r := &Retry{Inner: f, Attempts: 3, Backoff: time.Millisecond}

	require.NoError(t, r.Send(context.Background(), "t", "x"))
	assert.Equal(t, 2, f.calls)
}

func TestRetry_AllFailWrapsLast(t *testing.T) {
	last := errors.New("fail2")
	f := &scripted{errs: []error{errors.New("fail1"), last}}
	r := &Retry{Inner: f, Attempts: 2}

	err := r.Send(context.Background(), "t", "x")
	require.ErrorIs(t, err, last)
	assert.Contains(t, err.Error(), "after 2 attempts")
	assert.Equal(t, 2, f.calls)
}

func TestRetry_ZeroAttemptsMeansOne(t *testing.T) {
	f := &scripted{errs: []error{errors.New("nope")}}
	r := &Retry{Inner: f}

	require.Error(t, r.Send(context.Background(), "t", "x"))
	assert.Equal(t, 1, f.calls)
}

func TestRetry_StopsOnCancel(t *testing.T) {
	f := &scripted{errs: []error{errors.New("a"), errors.New("b")}}
	r := &Retry{Inner: f, Attempts: 5, Backoff: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.Send(ctx, "t", "x")
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, f.calls)
}
