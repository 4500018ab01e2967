package domain

import (
	"fmt"
	"time"
)

// Config is the single active threshold configuration.
type Config struct {
	ID          int64     `json:"id"`
	TempMax     float64   `json:"tempMax"`
	HumidityMax float64   `json:"humidityMax"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ThresholdFor returns the limit a reading of kind t is compared against.
func (c Config) ThresholdFor(t AlertType) (float64, bool) {
	switch t {
	case Temperature:
		return c.TempMax, true
	case Humidity:
		return c.HumidityMax, true
	}
	return 0, false
}

// ValidateThresholds enforces tempMax > 0 and 0 < humidityMax <= 100.
func ValidateThresholds(tempMax, humidityMax float64) error {
	if !(tempMax > 0) {
		return fmt.Errorf("%w: tempMax must be greater than 0", ErrInvalidThresholds)
	}
	if !(humidityMax > 0) || humidityMax > 100 {
		return fmt.Errorf("%w: humidityMax must be in (0, 100]", ErrInvalidThresholds)
	}
	return nil
}
