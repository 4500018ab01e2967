package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/hamed0406/sensoralert/internal/domain"
	"github.com/hamed0406/sensoralert/internal/fanout"
)

var units = map[domain.AlertType]string{
	domain.Temperature: "°C",
	domain.Humidity:    "%",
}

// Format renders a created alert as a title and a body.
func Format(a domain.Alert) (title, text string) {
	u := units[a.Type]
	title = fmt.Sprintf("🔴 %s above threshold", a.Type)
	text = fmt.Sprintf(
		"Alert #%d\nValue: %.1f%s\nThreshold: %.1f%s\nCreated: %s",
		a.ID, a.Value, u, a.Threshold, u, a.CreatedAt.UTC().Format(time.RFC3339),
	)
	return title, text
}

// Sink adapts n for fanout.Hub.Forward.
func Sink(n Notifier) fanout.SinkFunc {
	return func(ctx context.Context, a domain.Alert) error {
		title, text := Format(a)
		return n.Send(ctx, title, text)
	}
}
