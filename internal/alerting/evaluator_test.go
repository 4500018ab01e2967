package alerting

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamed0406/sensoralert/internal/domain"
	"github.com/hamed0406/sensoralert/internal/sensor"
)

func TestEvaluate_StrictlyGreater(t *testing.T) {
	cfg := &domain.Config{TempMax: 50, HumidityMax: 70}

	cases := []struct {
		name  string
		m     Measurement
		fires bool
	}{
		{"temp below", Measurement{domain.Temperature, 49.9}, false},
		{"temp equal", Measurement{domain.Temperature, 50}, false},
		{"temp above", Measurement{domain.Temperature, 50.0001}, true},
		{"humidity equal", Measurement{domain.Humidity, 70}, false},
		{"humidity above", Measurement{domain.Humidity, 99}, true},
		{"unknown kind", Measurement{domain.AlertType("Pressure"), 1e9}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			b, err := Evaluate(c.m, cfg)
			require.NoError(t, err)
			if !c.fires {
				assert.Nil(t, b)
				return
			}
			require.NotNil(t, b)
			assert.Equal(t, c.m.Kind, b.Kind)
			assert.Equal(t, c.m.Value, b.Value)
		})
	}
}

func TestEvaluate_ThresholdSweep(t *testing.T) {
	for _, limit := range []float64{30, 42.5, 50, 69.99, 70} {
		cfg := &domain.Config{TempMax: limit, HumidityMax: 100}
		for v := 30.0; v <= 70; v += 0.25 {
			b, err := Evaluate(Measurement{domain.Temperature, v}, cfg)
			require.NoError(t, err)
			if v > limit {
				require.NotNil(t, b, "v=%v limit=%v", v, limit)
				require.Equal(t, limit, b.Threshold)
			} else {
				require.Nil(t, b, "v=%v limit=%v", v, limit)
			}
		}
	}
}

func TestEvaluate_AbsentConfig(t *testing.T) {
	b, err := Evaluate(Measurement{domain.Temperature, 99}, nil)
	assert.Nil(t, b)
	assert.True(t, errors.Is(err, domain.ErrConfigAbsent))

	bs, err := EvaluateReading(sensor.Reading{Temperature: 99, Humidity: 99}, nil)
	assert.Empty(t, bs)
	assert.ErrorIs(t, err, domain.ErrConfigAbsent)
}

func TestEvaluateReading_Order(t *testing.T) {
	cfg := &domain.Config{TempMax: 50, HumidityMax: 70}

	bs, err := EvaluateReading(sensor.Reading{Temperature: 55, Humidity: 60}, cfg)
	require.NoError(t, err)
	require.Equal(t, []Breach{{Kind: domain.Temperature, Value: 55, Threshold: 50}}, bs)

	bs, err = EvaluateReading(sensor.Reading{Temperature: 65, Humidity: 80}, cfg)
	require.NoError(t, err)
	require.Len(t, bs, 2)
	assert.Equal(t, domain.Temperature, bs[0].Kind)
	assert.Equal(t, domain.Humidity, bs[1].Kind)

	bs, err = EvaluateReading(sensor.Reading{Temperature: 40, Humidity: 60}, cfg)
	require.NoError(t, err)
	assert.Empty(t, bs)
}
