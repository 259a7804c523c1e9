package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishRunsEveryHandler(t *testing.T) {
	d := NewInMemoryDispatcher()
	var seen []string

	d.Subscribe(EventRoleChanged, func(_ context.Context, e Event) error {
		seen = append(seen, "first:"+e.UserID)
		return errors.New("boom")
	})
	d.Subscribe(EventRoleChanged, func(_ context.Context, e Event) error {
		seen = append(seen, "second:"+e.UserID)
		return nil
	})
	d.Subscribe(EventAccountProvisioned, func(context.Context, Event) error {
		t.Fatal("unrelated handler invoked")
		return nil
	})

	err := d.Publish(context.Background(), New(EventRoleChanged, "u-1", nil, RoleChangedPayload{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, []string{"first:u-1", "second:u-1"}, seen)
}

func TestPublishWithoutListeners(t *testing.T) {
	d := NewInMemoryDispatcher()
	assert.NoError(t, d.Publish(context.Background(), New(EventIdentityOrphaned, "u-9", nil, nil)))
}

func TestNewStampsEvent(t *testing.T) {
	e := New(EventAccountProvisioned, "u-1", nil, nil)
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.Timestamp.IsZero())
	assert.Equal(t, EventAccountProvisioned, e.Type)
}
