// Package client talks to the sensoralert HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/hamed0406/sensoralert/internal/domain"
	"github.com/hamed0406/sensoralert/internal/httpapi"
)

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api %d: %s", e.Status, e.Message)
}

// ErrDropped is returned by Watch when the server dropped the stream
// because the client fell behind.
var ErrDropped = errors.New("stream dropped by server")

type Client struct {
	base string
	key  string
	http *http.Client
}

func New(base, key string) *Client {
	return &Client{
		base: strings.TrimRight(base, "/"),
		key:  key,
		http: &http.Client{Timeout: 15 * time.Second},
	}
}

// ListOptions filter ListAlerts. Zero values are omitted.
type ListOptions struct {
	Type   string
	Status string
	From   time.Time
	To     time.Time
}

func (o ListOptions) query() string {
	q := url.Values{}
	if o.Type != "" {
		q.Set("type", o.Type)
	}
	if o.Status != "" {
		q.Set("status", o.Status)
	}
	if !o.From.IsZero() {
		q.Set("from", o.From.UTC().Format(time.RFC3339))
	}
	if !o.To.IsZero() {
		q.Set("to", o.To.UTC().Format(time.RFC3339))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

func (c *Client) ListAlerts(ctx context.Context, o ListOptions) ([]domain.Alert, error) {
	var out []domain.Alert
	err := c.do(ctx, http.MethodGet, "/alerts"+o.query(), nil, &out)
	return out, err
}

func (c *Client) GetAlert(ctx context.Context, id domain.AlertID) (*domain.Alert, error) {
	var out domain.Alert
	if err := c.do(ctx, http.MethodGet, alertPath(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Acknowledge(ctx context.Context, id domain.AlertID) (*domain.Alert, error) {
	var out domain.Alert
	if err := c.do(ctx, http.MethodPost, alertPath(id)+"/acknowledge", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SetStatus(ctx context.Context, id domain.AlertID, status string) (*domain.Alert, error) {
	var out domain.Alert
	body := map[string]string{"status": status}
	if err := c.do(ctx, http.MethodPatch, alertPath(id)+"/status", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetConfig(ctx context.Context) (*domain.Config, error) {
	var out domain.Config
	if err := c.do(ctx, http.MethodGet, "/config", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SetConfig(ctx context.Context, tempMax, humidityMax float64) (*domain.Config, error) {
	var out domain.Config
	body := map[string]float64{"tempMax": tempMax, "humidityMax": humidityMax}
	if err := c.do(ctx, http.MethodPut, "/config", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Watch streams live alerts to fn until ctx is done, fn fails, or the
// server closes the stream.
func (c *Client) Watch(ctx context.Context, fn func(domain.Alert) error) error {
	u, err := url.Parse(c.base + "/ws/alerts")
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	if c.key != "" {
		u.RawQuery = url.Values{"access_token": {c.key}}.Encode()
	}

	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial stream: %w", err)
	}
	defer conn.CloseNow()

	for {
		var ev httpapi.AlertEvent
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusTryAgainLater:
				return ErrDropped
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if ev.Type != httpapi.EventAlertCreated {
			continue
		}
		if err := fn(ev.Alert); err != nil {
			conn.Close(websocket.StatusNormalClosure, "")
			return err
		}
	}
}

func alertPath(id domain.AlertID) string {
	return "/alerts/" + strconv.FormatInt(int64(id), 10)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.key != "" {
		req.Header.Set("Authorization", "Bearer "+c.key)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var e struct {
			Message string `json:"message"`
		}
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(b, &e) != nil || e.Message == "" {
			e.Message = strings.TrimSpace(string(b))
		}
		return &APIError{Status: resp.StatusCode, Message: e.Message}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
