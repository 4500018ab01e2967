package domain

import (
	"strings"
	"time"
)

type AlertID int64

// AlertType names the measurement that crossed its threshold.
type AlertType string

const (
	Temperature AlertType = "Temperature"
	Humidity    AlertType = "Humidity"
)

// AlertStatus is the lifecycle state of an alert. Wire values match the
// dashboard clients: "open" and "ack".
type AlertStatus string

const (
	StatusOpen         AlertStatus = "open"
	StatusAcknowledged AlertStatus = "ack"
)

type Alert struct {
	ID        AlertID     `json:"id"`
	Type      AlertType   `json:"type"`
	Value     float64     `json:"value"`
	Threshold float64     `json:"threshold"`
	CreatedAt time.Time   `json:"createdAt"`
	Status    AlertStatus `json:"status"`
}

// ParseStatus accepts only the two lifecycle values.
func ParseStatus(s string) (AlertStatus, bool) {
	switch AlertStatus(strings.TrimSpace(s)) {
	case StatusOpen:
		return StatusOpen, true
	case StatusAcknowledged:
		return StatusAcknowledged, true
	}
	return "", false
}

func ParseType(s string) (AlertType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "temperature":
		return Temperature, true
	case "humidity":
		return Humidity, true
	}
	return "", false
}
