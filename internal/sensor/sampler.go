// Package sensor produces synthetic temperature and humidity readings.
package sensor

import (
	"math/rand/v2"
	"sync"
	"time"
)

const (
	TempMin     = 30.0
	TempMax     = 70.0
	HumidityMin = 50.0
	HumidityMax = 100.0
)

// Reading is one sampled pair.
type Reading struct {
	Temperature float64
	Humidity    float64
}

// Sampler yields one reading per call. Implementations must keep values
// inside [TempMin,TempMax] and [HumidityMin,HumidityMax].
type Sampler interface {
	Sample() Reading
}

// SamplerFunc adapts a plain function to Sampler.
type SamplerFunc func() Reading

func (f SamplerFunc) Sample() Reading { return f() }

// RandomSampler draws uniformly from the sensor bounds.
type RandomSampler struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRandomSampler seeds from the given value; zero seeds from the clock.
func NewRandomSampler(seed uint64) *RandomSampler {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &RandomSampler{rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *RandomSampler) Sample() Reading {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Reading{
		Temperature: between(s.rnd, TempMin, TempMax),
		Humidity:    between(s.rnd, HumidityMin, HumidityMax),
	}
}

// between returns a value in [lo, hi]. Float64 is half-open, so hi is
// reachable only through rounding, which is fine for a simulated sensor.
func between(r *rand.Rand, lo, hi float64) float64 {
	v := lo + r.Float64()*(hi-lo)
	if v > hi {
		v = hi
	}
	return v
}
