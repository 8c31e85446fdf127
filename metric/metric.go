// Package metric defines the pluggable distance contract and the built-in
// Minkowski family. All built-ins additionally implement IntervalMetric so
// spatial indexes can bound distances against axis-aligned rectangles for
// pruning.
package metric

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
)

var (
	// ErrUnknownMetric is returned by ByName for unregistered names.
	ErrUnknownMetric = errors.New("metric: unknown metric")

	// ErrInvalidOrder is returned for Minkowski orders below one.
	ErrInvalidOrder = errors.New("metric: minkowski order must be >= 1")
)

// Metric measures the distance between two points of equal dimension. The
// result must be non-negative; pruning additionally assumes symmetry.
type Metric interface {
	// Name identifies the metric for persistence and logs.
	Name() string

	// Evaluate returns the distance between a and b.
	Evaluate(a, b []float64) float64
}

// IntervalMetric extends Metric with distance bounds between points and
// axis-aligned rectangles. Tree-based search requires it; plain sampled
// search works with any Metric.
type IntervalMetric interface {
	Metric

	// MinToRect returns the smallest possible distance from p to any point
	// inside the rectangle [lo, hi].
	MinToRect(p, lo, hi []float64) float64

	// MaxToRect returns the largest possible distance from p to any point
	// inside the rectangle [lo, hi].
	MaxToRect(p, lo, hi []float64) float64

	// MinRectToRect returns the smallest possible distance between a point
	// in [alo, ahi] and a point in [blo, bhi].
	MinRectToRect(alo, ahi, blo, bhi []float64) float64

	// MaxRectToRect returns the largest possible distance between a point
	// in [alo, ahi] and a point in [blo, bhi].
	MaxRectToRect(alo, ahi, blo, bhi []float64) float64
}

// Euclidean is the L2 metric.
type Euclidean struct{}

// Name implements Metric.
func (Euclidean) Name() string { return "l2" }

// Evaluate implements Metric.
func (Euclidean) Evaluate(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}

	return math.Sqrt(sum)
}

// MinToRect implements IntervalMetric.
func (Euclidean) MinToRect(p, lo, hi []float64) float64 {
	var sum float64
	for i := range p {
		d := axisGap(p[i], lo[i], hi[i])
		sum += d * d
	}

	return math.Sqrt(sum)
}

// MaxToRect implements IntervalMetric.
func (Euclidean) MaxToRect(p, lo, hi []float64) float64 {
	var sum float64
	for i := range p {
		d := axisReach(p[i], lo[i], hi[i])
		sum += d * d
	}

	return math.Sqrt(sum)
}

// MinRectToRect implements IntervalMetric.
func (Euclidean) MinRectToRect(alo, ahi, blo, bhi []float64) float64 {
	var sum float64
	for i := range alo {
		d := rectGap(alo[i], ahi[i], blo[i], bhi[i])
		sum += d * d
	}

	return math.Sqrt(sum)
}

// MaxRectToRect implements IntervalMetric.
func (Euclidean) MaxRectToRect(alo, ahi, blo, bhi []float64) float64 {
	var sum float64
	for i := range alo {
		d := rectReach(alo[i], ahi[i], blo[i], bhi[i])
		sum += d * d
	}

	return math.Sqrt(sum)
}

// SquaredEuclidean is the squared L2 metric. It orders points identically to
// Euclidean while skipping the square root; its rectangle bounds are squared
// as well, so thresholds obtained from it stay in squared space.
type SquaredEuclidean struct{}

// Name implements Metric.
func (SquaredEuclidean) Name() string { return "squared_l2" }

// Evaluate implements Metric.
func (SquaredEuclidean) Evaluate(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}

	return sum
}

// MinToRect implements IntervalMetric.
func (SquaredEuclidean) MinToRect(p, lo, hi []float64) float64 {
	d := Euclidean{}.MinToRect(p, lo, hi)
	return d * d
}

// MaxToRect implements IntervalMetric.
func (SquaredEuclidean) MaxToRect(p, lo, hi []float64) float64 {
	d := Euclidean{}.MaxToRect(p, lo, hi)
	return d * d
}

// MinRectToRect implements IntervalMetric.
func (SquaredEuclidean) MinRectToRect(alo, ahi, blo, bhi []float64) float64 {
	d := Euclidean{}.MinRectToRect(alo, ahi, blo, bhi)
	return d * d
}

// MaxRectToRect implements IntervalMetric.
func (SquaredEuclidean) MaxRectToRect(alo, ahi, blo, bhi []float64) float64 {
	d := Euclidean{}.MaxRectToRect(alo, ahi, blo, bhi)
	return d * d
}

// Manhattan is the L1 metric.
type Manhattan struct{}

// Name implements Metric.
func (Manhattan) Name() string { return "l1" }

// Evaluate implements Metric.
func (Manhattan) Evaluate(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += math.Abs(a[i] - b[i])
	}

	return sum
}

// MinToRect implements IntervalMetric.
func (Manhattan) MinToRect(p, lo, hi []float64) float64 {
	var sum float64
	for i := range p {
		sum += axisGap(p[i], lo[i], hi[i])
	}

	return sum
}

// MaxToRect implements IntervalMetric.
func (Manhattan) MaxToRect(p, lo, hi []float64) float64 {
	var sum float64
	for i := range p {
		sum += axisReach(p[i], lo[i], hi[i])
	}

	return sum
}

// MinRectToRect implements IntervalMetric.
func (Manhattan) MinRectToRect(alo, ahi, blo, bhi []float64) float64 {
	var sum float64
	for i := range alo {
		sum += rectGap(alo[i], ahi[i], blo[i], bhi[i])
	}

	return sum
}

// MaxRectToRect implements IntervalMetric.
func (Manhattan) MaxRectToRect(alo, ahi, blo, bhi []float64) float64 {
	var sum float64
	for i := range alo {
		sum += rectReach(alo[i], ahi[i], blo[i], bhi[i])
	}

	return sum
}

// Chebyshev is the L-infinity metric.
type Chebyshev struct{}

// Name implements Metric.
func (Chebyshev) Name() string { return "linf" }

// Evaluate implements Metric.
func (Chebyshev) Evaluate(a, b []float64) float64 {
	var max float64
	for i := range a {
		if d := math.Abs(a[i] - b[i]); d > max {
			max = d
		}
	}

	return max
}

// MinToRect implements IntervalMetric.
func (Chebyshev) MinToRect(p, lo, hi []float64) float64 {
	var max float64
	for i := range p {
		if d := axisGap(p[i], lo[i], hi[i]); d > max {
			max = d
		}
	}

	return max
}

// MaxToRect implements IntervalMetric.
func (Chebyshev) MaxToRect(p, lo, hi []float64) float64 {
	var max float64
	for i := range p {
		if d := axisReach(p[i], lo[i], hi[i]); d > max {
			max = d
		}
	}

	return max
}

// MinRectToRect implements IntervalMetric.
func (Chebyshev) MinRectToRect(alo, ahi, blo, bhi []float64) float64 {
	var max float64
	for i := range alo {
		if d := rectGap(alo[i], ahi[i], blo[i], bhi[i]); d > max {
			max = d
		}
	}

	return max
}

// MaxRectToRect implements IntervalMetric.
func (Chebyshev) MaxRectToRect(alo, ahi, blo, bhi []float64) float64 {
	var max float64
	for i := range alo {
		if d := rectReach(alo[i], ahi[i], blo[i], bhi[i]); d > max {
			max = d
		}
	}

	return max
}

// Minkowski is the Lp metric for a fixed order p >= 1.
type Minkowski struct {
	p float64
}

// NewMinkowski returns the Lp metric of the given order.
func NewMinkowski(p float64) (Minkowski, error) {
	if p < 1 || math.IsNaN(p) {
		return Minkowski{}, fmt.Errorf("%w: got %g", ErrInvalidOrder, p)
	}

	return Minkowski{p: p}, nil
}

// Order returns p.
func (m Minkowski) Order() float64 { return m.p }

// Name implements Metric.
func (m Minkowski) Name() string {
	return "minkowski-" + strconv.FormatFloat(m.p, 'g', -1, 64)
}

// Evaluate implements Metric.
func (m Minkowski) Evaluate(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += math.Pow(math.Abs(a[i]-b[i]), m.p)
	}

	return math.Pow(sum, 1/m.p)
}

// MinToRect implements IntervalMetric.
func (m Minkowski) MinToRect(p, lo, hi []float64) float64 {
	var sum float64
	for i := range p {
		sum += math.Pow(axisGap(p[i], lo[i], hi[i]), m.p)
	}

	return math.Pow(sum, 1/m.p)
}

// MaxToRect implements IntervalMetric.
func (m Minkowski) MaxToRect(p, lo, hi []float64) float64 {
	var sum float64
	for i := range p {
		sum += math.Pow(axisReach(p[i], lo[i], hi[i]), m.p)
	}

	return math.Pow(sum, 1/m.p)
}

// MinRectToRect implements IntervalMetric.
func (m Minkowski) MinRectToRect(alo, ahi, blo, bhi []float64) float64 {
	var sum float64
	for i := range alo {
		sum += math.Pow(rectGap(alo[i], ahi[i], blo[i], bhi[i]), m.p)
	}

	return math.Pow(sum, 1/m.p)
}

// MaxRectToRect implements IntervalMetric.
func (m Minkowski) MaxRectToRect(alo, ahi, blo, bhi []float64) float64 {
	var sum float64
	for i := range alo {
		sum += math.Pow(rectReach(alo[i], ahi[i], blo[i], bhi[i]), m.p)
	}

	return math.Pow(sum, 1/m.p)
}

// axisGap is the one-dimensional distance from x to the interval [lo, hi],
// zero when x lies inside.
func axisGap(x, lo, hi float64) float64 {
	switch {
	case x < lo:
		return lo - x
	case x > hi:
		return x - hi
	default:
		return 0
	}
}

// axisReach is the one-dimensional distance from x to the farthest end of
// the interval [lo, hi].
func axisReach(x, lo, hi float64) float64 {
	return math.Max(math.Abs(x-lo), math.Abs(x-hi))
}

// rectGap is the one-dimensional distance between the intervals [alo, ahi]
// and [blo, bhi], zero when they overlap.
func rectGap(alo, ahi, blo, bhi float64) float64 {
	switch {
	case ahi < blo:
		return blo - ahi
	case bhi < alo:
		return alo - bhi
	default:
		return 0
	}
}

// rectReach is the largest one-dimensional distance between a point of
// [alo, ahi] and a point of [blo, bhi].
func rectReach(alo, ahi, blo, bhi float64) float64 {
	return math.Max(math.Abs(ahi-blo), math.Abs(bhi-alo))
}

var (
	registryMu sync.RWMutex
	registry   = map[string]func() (Metric, error){
		Euclidean{}.Name():        func() (Metric, error) { return Euclidean{}, nil },
		SquaredEuclidean{}.Name(): func() (Metric, error) { return SquaredEuclidean{}, nil },
		Manhattan{}.Name():        func() (Metric, error) { return Manhattan{}, nil },
		Chebyshev{}.Name():        func() (Metric, error) { return Chebyshev{}, nil },
	}
)

// Register makes a custom metric resolvable by name, e.g. after loading a
// snapshot that references it. Built-in names cannot be replaced.
func Register(name string, factory func() (Metric, error)) error {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, ok := registry[name]; ok {
		return fmt.Errorf("metric: name %q already registered", name)
	}

	registry[name] = factory

	return nil
}

// ByName resolves a metric name as produced by Metric.Name. Minkowski names
// of the form "minkowski-<p>" are handled without registration.
func ByName(name string) (Metric, error) {
	if p, ok := strings.CutPrefix(name, "minkowski-"); ok {
		order, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, name)
		}

		return NewMinkowski(order)
	}

	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, name)
	}

	return factory()
}

// Names lists all registered metric names, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

var (
	_ IntervalMetric = Euclidean{}
	_ IntervalMetric = SquaredEuclidean{}
	_ IntervalMetric = Manhattan{}
	_ IntervalMetric = Chebyshev{}
	_ IntervalMetric = Minkowski{}
)
