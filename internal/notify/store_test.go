package notify

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(start time.Time) (*Store, *time.Time) {
	now := start
	s := NewStore(5 * time.Second)
	s.now = func() time.Time { return now }
	return s, &now
}

func TestSuccessToastExpires(t *testing.T) {
	s, now := newTestStore(time.Unix(1000, 0))
	s.Success("Dense model loaded successfully!")

	active := s.Active()
	require.Len(t, active, 1)
	assert.Equal(t, StatusSuccess, active[0].Status)
	assert.True(t, active[0].Closable)

	*now = now.Add(4 * time.Second)
	assert.Len(t, s.Active(), 1)

	*now = now.Add(time.Second)
	assert.Empty(t, s.Active())
}

func TestFailureToastPersists(t *testing.T) {
	s, now := newTestStore(time.Unix(1000, 0))
	s.Failure("CNN model failed to load")

	*now = now.Add(24 * time.Hour)
	active := s.Active()
	require.Len(t, active, 1)
	assert.Equal(t, StatusError, active[0].Status)
	assert.False(t, active[0].Closable)

	assert.False(t, s.Dismiss(active[0].ID))
	assert.Len(t, s.Active(), 1)
}

func TestDismiss(t *testing.T) {
	s, now := newTestStore(time.Unix(1000, 0))
	s.Success("first")
	*now = now.Add(time.Millisecond)
	s.Failure("second")

	active := s.Active()
	require.Len(t, active, 2)
	assert.Equal(t, "first", active[0].Title)
	assert.Equal(t, "second", active[1].Title)

	assert.True(t, s.Dismiss(active[0].ID))
	assert.False(t, s.Dismiss(uuid.New()))
	assert.Len(t, s.Active(), 1)
}
