// Package space defines distance spaces: how points are sized and compared.
package space

import (
	"errors"
	"fmt"
	"unsafe"
)

var (
	// ErrUnknownMetric is returned for an unsupported metric name.
	ErrUnknownMetric = errors.New("unknown metric")

	// ErrMetricElementMismatch is returned when a metric is used with an
	// element type it does not support.
	ErrMetricElementMismatch = errors.New("metric does not support element type")

	// ErrInvalidDimension is returned for a non-positive dimension.
	ErrInvalidDimension = errors.New("invalid dimension")

	// ErrZeroVector is returned when a zero vector is normalized.
	ErrZeroVector = errors.New("cannot normalize zero vector")
)

// Element is the set of supported vector element types. Binary vectors are
// packed eight bits per uint8.
type Element interface {
	float32 | uint8
}

// Param is the parameter blob handed verbatim to a DistFunc.
type Param struct {
	// Dim is the number of elements per vector.
	Dim int
}

// DistFunc computes the distance between a and b. Smaller is closer.
type DistFunc[E Element] func(a, b []E, p *Param) float32

// Space supplies the layout and distance function for a vector type.
//
// Implementations are immutable and safe for concurrent use.
type Space[E Element] interface {
	// DataSize returns the number of bytes a stored point occupies.
	DataSize() int
	// DistFunc returns the distance function.
	DistFunc() DistFunc[E]
	// DistFuncParam returns the parameter blob for DistFunc.
	DistFuncParam() *Param
	// Metric returns the metric this space implements.
	Metric() Metric
	// Dim returns the number of elements per vector.
	Dim() int
	// Prepare returns v in the form stored and compared by the space. For
	// cosine spaces this is a normalized copy; otherwise v itself.
	Prepare(v []E) ([]E, error)
}

type space[E Element] struct {
	metric Metric
	param  Param
	fn     DistFunc[E]
}

// New returns the space for metric over dim-element vectors.
func New[E Element](metric Metric, dim int) (Space[E], error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDimension, dim)
	}

	var zero E
	_, isFloat := any(zero).(float32)
	if isFloat == metric.IsBinary() {
		return nil, fmt.Errorf("%w: %s over %T", ErrMetricElementMismatch, metric, zero)
	}

	fn, err := distFuncFor[E](metric)
	if err != nil {
		return nil, err
	}

	return &space[E]{
		metric: metric,
		param:  Param{Dim: dim},
		fn:     fn,
	}, nil
}

// MustNew is like New but panics on error.
func MustNew[E Element](metric Metric, dim int) Space[E] {
	s, err := New[E](metric, dim)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *space[E]) DataSize() int {
	var zero E
	return s.param.Dim * int(unsafe.Sizeof(zero))
}

func (s *space[E]) DistFunc() DistFunc[E] { return s.fn }

func (s *space[E]) DistFuncParam() *Param {
	p := s.param
	return &p
}

func (s *space[E]) Metric() Metric { return s.metric }

func (s *space[E]) Dim() int { return s.param.Dim }

func (s *space[E]) Prepare(v []E) ([]E, error) {
	if s.metric != Cosine {
		return v, nil
	}
	f, ok := any(v).([]float32)
	if !ok {
		return v, nil
	}
	out := make([]float32, len(f))
	copy(out, f)
	if !NormalizeL2InPlace(out) {
		return nil, ErrZeroVector
	}
	return any(out).([]E), nil
}

func distFuncFor[E Element](m Metric) (DistFunc[E], error) {
	var fn any
	switch m {
	case L2:
		fn = DistFunc[float32](squaredL2)
	case IP, Cosine:
		fn = DistFunc[float32](innerProductDistance)
	case Hamming:
		fn = DistFunc[uint8](hamming)
	case Jaccard:
		fn = DistFunc[uint8](jaccard)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownMetric, m)
	}
	typed, ok := fn.(DistFunc[E])
	if !ok {
		var zero E
		return nil, fmt.Errorf("%w: %s over %T", ErrMetricElementMismatch, m, zero)
	}
	return typed, nil
}
