// Package alerting decides when a reading becomes an alert and owns the
// alert lifecycle afterwards.
package alerting

import (
	"github.com/hamed0406/sensoralert/internal/domain"
	"github.com/hamed0406/sensoralert/internal/sensor"
)

// Measurement is one reading of one kind.
type Measurement struct {
	Kind  domain.AlertType
	Value float64
}

// Breach is a measurement above its threshold, with the threshold that was
// in effect.
type Breach struct {
	Kind      domain.AlertType
	Value     float64
	Threshold float64
}

// Evaluate compares m against cfg. The comparison is strictly greater-than.
// A nil cfg yields domain.ErrConfigAbsent and no breach.
func Evaluate(m Measurement, cfg *domain.Config) (*Breach, error) {
	if cfg == nil {
		return nil, domain.ErrConfigAbsent
	}
	limit, ok := cfg.ThresholdFor(m.Kind)
	if !ok || !(m.Value > limit) {
		return nil, nil
	}
	return &Breach{Kind: m.Kind, Value: m.Value, Threshold: limit}, nil
}

// EvaluateReading checks temperature, then humidity. The returned slice
// keeps that order. With a nil cfg nothing is evaluated.
func EvaluateReading(r sensor.Reading, cfg *domain.Config) ([]Breach, error) {
	if cfg == nil {
		return nil, domain.ErrConfigAbsent
	}
	var out []Breach
	for _, m := range []Measurement{
		{Kind: domain.Temperature, Value: r.Temperature},
		{Kind: domain.Humidity, Value: r.Humidity},
	} {
		b, err := Evaluate(m, cfg)
		if err != nil {
			return nil, err
		}
		if b != nil {
			out = append(out, *b)
		}
	}
	return out, nil
}
