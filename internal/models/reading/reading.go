package reading

import (
	"math/rand/v2"
	"time"
)

type Reading struct {
	SensorID    string  `json:"sensor_id" bson:"sensor_id"`
	Temperature float64 `json:"temperature" bson:"temperature"`
	Humidity    float64 `json:"humidity" bson:"humidity"`
	Normalized  float64 `json:"normalized" bson:"normalized"`
	Timestamp   string  `json:"timestamp,omitempty" bson:"timestamp,omitempty"`
}

// Ranges holds the sampling bounds and the reference bounds used for
// normalization. Sampling bounds are wider than the reference bounds, so
// Normalize regularly leaves [0, 100].
type Ranges struct {
	TempMin     float64
	TempMax     float64
	HumidityMin float64
	HumidityMax float64

	TempRefLow      float64
	TempRefHigh     float64
	HumidityRefLow  float64
	HumidityRefHigh float64
}

func DefaultRanges() Ranges {
	return Ranges{
		TempMin:         15,
		TempMax:         35,
		HumidityMin:     55,
		HumidityMax:     85,
		TempRefLow:      20,
		TempRefHigh:     30,
		HumidityRefLow:  60,
		HumidityRefHigh: 80,
	}
}

// Normalize maps temperature and humidity onto their reference ranges,
// averages the two and scales the result by 100. The result is not clamped.
func Normalize(temperature, humidity float64, r Ranges) float64 {
	normalizedTemp := (temperature - r.TempRefLow) / (r.TempRefHigh - r.TempRefLow)
	normalizedHumidity := (humidity - r.HumidityRefLow) / (r.HumidityRefHigh - r.HumidityRefLow)

	average := (normalizedTemp + normalizedHumidity) / 2
	return average * 100
}

// Generate draws temperature and then humidity uniformly from the sampling
// ranges and derives the normalized score. The timestamp is left empty.
func Generate(rng *rand.Rand, sensorID string, r Ranges) Reading {
	temperature := uniform(rng, r.TempMin, r.TempMax)
	humidity := uniform(rng, r.HumidityMin, r.HumidityMax)

	return Reading{
		SensorID:    sensorID,
		Temperature: temperature,
		Humidity:    humidity,
		Normalized:  Normalize(temperature, humidity, r),
	}
}

// WithTimestamp returns a copy stamped with t in UTC.
func (r Reading) WithTimestamp(t time.Time) Reading {
	r.Timestamp = t.UTC().Format(time.RFC3339Nano)
	return r
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}
