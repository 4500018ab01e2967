package relay

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamed0406/sensoralert/internal/domain"
)

func TestRedis_PublishesAlertJSON(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rel, err := NewRedis(ctx, mr.Addr(), "")
	require.NoError(t, err)
	defer rel.Close()
	assert.Equal(t, DefaultChannel, rel.Channel())

	sub := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer sub.Close()
	ps := sub.Subscribe(ctx, DefaultChannel)
	defer ps.Close()
	_, err = ps.Receive(ctx) // subscription confirmation
	require.NoError(t, err)

	a := domain.Alert{
		ID:        3,
		Type:      domain.Temperature,
		Value:     61,
		Threshold: 50,
		CreatedAt: time.Date(2025, 10, 22, 16, 0, 0, 0, time.UTC),
		Status:    domain.StatusOpen,
	}
	require.NoError(t, rel.Publish(ctx, a))

	msg, err := ps.ReceiveMessage(ctx)
	require.NoError(t, err)
	var got Message
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	assert.Equal(t, "alert.created", got.Event)
	assert.Equal(t, a, got.Alert)
}

func TestRedis_PingFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := NewRedis(ctx, addr, "x")
	assert.Error(t, err)
}

func TestRedis_PublishAfterServerGone(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rel, err := NewRedis(ctx, mr.Addr(), "alerts")
	require.NoError(t, err)
	defer rel.Close()

	mr.Close()
	assert.Error(t, rel.Publish(ctx, domain.Alert{ID: 1}))
}
