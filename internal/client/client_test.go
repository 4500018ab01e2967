package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hamed0406/sensoralert/internal/alerting"
	"github.com/hamed0406/sensoralert/internal/domain"
	"github.com/hamed0406/sensoralert/internal/fanout"
	"github.com/hamed0406/sensoralert/internal/httpapi"
	apimw "github.com/hamed0406/sensoralert/internal/httpapi/middleware"
	"github.com/hamed0406/sensoralert/internal/repo/memory"
)

type env struct {
	url   string
	store *memory.Store
	hub   *fanout.Hub
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := memory.New()
	_, err := store.Seed(context.Background(), 50, 70)
	require.NoError(t, err)
	hub := fanout.NewHub(8, zap.NewNop())
	h := httpapi.NewServer(zap.NewNop(), store, hub).Router(
		apimw.Keys{Public: []string{"pub"}, Admin: []string{"adm"}},
		nil,
		httpapi.Limits{},
	)
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return &env{url: ts.URL, store: store, hub: hub}
}

func TestClient_AlertsRoundTrip(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	m := alerting.NewManager(e.store, nil)
	_, _ = m.Create(ctx, domain.Temperature, 55, 50)
	_, _ = m.Create(ctx, domain.Humidity, 80, 70)

	c := New(e.url+"/", "adm")

	list, err := c.ListAlerts(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, list, 2)

	hum, err := c.ListAlerts(ctx, ListOptions{Type: "Humidity", From: time.Now().Add(-time.Hour)})
	require.NoError(t, err)
	require.Len(t, hum, 1)

	a, err := c.GetAlert(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.Temperature, a.Type)

	a, err = c.Acknowledge(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAcknowledged, a.Status)

	_, err = c.Acknowledge(ctx, 1)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Contains(t, apiErr.Message, "already acknowledged")

	a, err = c.SetStatus(ctx, 1, "open")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, a.Status)

	_, err = c.GetAlert(ctx, 99)
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}

func TestClient_Config(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	c := New(e.url, "adm")
	cfg, err := c.SetConfig(ctx, 42, 88)
	require.NoError(t, err)
	assert.Equal(t, 42.0, cfg.TempMax)

	got, err := New(e.url, "pub").GetConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, 88.0, got.HumidityMax)

	_, err = New(e.url, "pub").SetConfig(ctx, 1, 1)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
}

func TestClient_Watch(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan domain.Alert, 4)
	done := make(chan error, 1)
	go func() {
		done <- New(e.url, "pub").Watch(ctx, func(a domain.Alert) error {
			got <- a
			return nil
		})
	}()

	require.Eventually(t, func() bool { return e.hub.Len() == 1 }, 2*time.Second, 5*time.Millisecond)
	e.hub.Publish(domain.Alert{ID: 11, Type: domain.Temperature, Status: domain.StatusOpen})
	e.hub.Publish(domain.Alert{ID: 12, Type: domain.Humidity, Status: domain.StatusOpen})

	assert.Equal(t, domain.AlertID(11), (<-got).ID)
	assert.Equal(t, domain.AlertID(12), (<-got).ID)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestClient_WatchStopsOnCallbackError(t *testing.T) {
	e := newEnv(t)
	stop := errors.New("enough")
	done := make(chan error, 1)
	go func() {
		done <- New(e.url, "pub").Watch(context.Background(), func(domain.Alert) error { return stop })
	}()

	require.Eventually(t, func() bool { return e.hub.Len() == 1 }, 2*time.Second, 5*time.Millisecond)
	e.hub.Publish(domain.Alert{ID: 1})

	select {
	case err := <-done:
		assert.ErrorIs(t, err, stop)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return")
	}
}
