package catalogindex

import (
	"fmt"
	"math"
	"strings"
)

// Metric selects how vectors are compared.
type Metric int

const (
	// MetricL2 is raw squared Euclidean distance over the stored vectors.
	MetricL2 Metric = iota
	// MetricCosine L2-normalizes vectors before squared Euclidean distance (2 - 2cos).
	MetricCosine
)

func (m Metric) String() string {
	switch m {
	case MetricL2:
		return "l2"
	case MetricCosine:
		return "cosine"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// ParseMetric maps a config value to a Metric. Empty means l2.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(s) {
	case "", "l2", "euclidean":
		return MetricL2, nil
	case "cosine":
		return MetricCosine, nil
	default:
		return 0, fmt.Errorf("unsupported metric %q", s)
	}
}

// squaredL2 assumes equal lengths (caller's responsibility).
func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// normalizeInPlace L2-normalizes v. Zero vectors are left untouched.
func normalizeInPlace(v []float32) {
	var norm2 float64
	for _, x := range v {
		norm2 += float64(x) * float64(x)
	}
	if norm2 == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(norm2))
	for i := range v {
		v[i] *= inv
	}
}
