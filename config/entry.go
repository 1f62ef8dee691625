package config

import (
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Kind identifies the value type of a parameter.
type Kind uint8

const (
	KindString Kind = iota
	KindFloat
	KindInt
	KindList
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindFloat:
		return "float"
	case KindInt:
		return "int"
	case KindList:
		return "list"
	case KindBool:
		return "bool"
	default:
		return "unknown"
	}
}

// EntryInfo is a read-only description of a registered parameter.
type EntryInfo struct {
	Name        string
	Kind        Kind
	Phases      Phase
	Default     any // nil if the parameter has no default
	Min, Max    any // nil if the parameter has no range
	Value       any // current slot value, nil while unset
	Description string
	AllowEmpty  bool
}

// entry is implemented by param[T] for exactly the five supported kinds.
type entry interface {
	name() string
	phases() Phase
	kind() Kind
	// load validates and assigns the document value. It returns a function
	// that restores the previous slot state.
	load(doc Document) (undo func(), err error)
	info() EntryInfo
}

type param[T any] struct {
	key        string
	k          Kind
	mask       Phase
	desc       string
	allowEmpty bool
	slot       *Value[T]
	def        *T
	lo, hi     *T
	decode     func(p *param[T], r gjson.Result) (T, error)
}

func (p *param[T]) name() string  { return p.key }
func (p *param[T]) phases() Phase { return p.mask }
func (p *param[T]) kind() Kind    { return p.k }

func (p *param[T]) load(doc Document) (func(), error) {
	prev := *p.slot
	undo := func() { *p.slot = prev }

	r, ok := doc.Lookup(p.key)
	if !ok {
		if p.def == nil {
			if p.allowEmpty {
				return nil, nil
			}
			return nil, paramErrorf(ErrMissingRequiredParam, p.key, "invalid param %s", p.key)
		}
		p.slot.Set(*p.def)
		return undo, nil
	}

	v, err := p.decode(p, r)
	if err != nil {
		return nil, err
	}
	p.slot.Set(v)
	return undo, nil
}

func (p *param[T]) info() EntryInfo {
	ei := EntryInfo{
		Name:        p.key,
		Kind:        p.k,
		Phases:      p.mask,
		Description: p.desc,
		AllowEmpty:  p.allowEmpty,
	}
	if p.def != nil {
		ei.Default = *p.def
	}
	if v, ok := p.slot.Get(); ok {
		ei.Value = v
	}
	if p.lo != nil && p.hi != nil && (p.k == KindInt || p.k == KindFloat) {
		ei.Min, ei.Max = *p.lo, *p.hi
	}
	return ei
}

func decodeString(p *param[string], r gjson.Result) (string, error) {
	if r.Type != gjson.String {
		return "", paramErrorf(ErrTypeConflict, p.key, "param %s should be a string", p.key)
	}
	return r.String(), nil
}

func decodeBool(p *param[bool], r gjson.Result) (bool, error) {
	if r.Type != gjson.True && r.Type != gjson.False {
		return false, paramErrorf(ErrTypeConflict, p.key, "param %s should be a boolean", p.key)
	}
	return r.Bool(), nil
}

func decodeInt(p *param[int32], r gjson.Result) (int32, error) {
	if !isIntegerLiteral(r) {
		return 0, paramErrorf(ErrTypeConflict, p.key, "param %s should be integer", p.key)
	}
	v, err := strconv.ParseInt(r.Raw, 10, 64)
	negative := strings.HasPrefix(r.Raw, "-")
	if (err != nil && !negative) || v > math.MaxInt32 {
		return 0, paramErrorf(ErrArithmeticOverflow, p.key, "param %s should be at most %d", p.key, math.MaxInt32)
	}
	if err != nil || v < math.MinInt32 {
		return 0, paramErrorf(ErrArithmeticOverflow, p.key, "param %s should be at least %d", p.key, math.MinInt32)
	}
	iv := int32(v)
	if p.lo != nil && p.hi != nil && (iv < *p.lo || iv > *p.hi) {
		return 0, paramErrorf(ErrOutOfRange, p.key, "param %s out of range [ %d,%d ]", p.key, *p.lo, *p.hi)
	}
	return iv, nil
}

func decodeFloat(p *param[float32], r gjson.Result) (float32, error) {
	if r.Type != gjson.Number {
		return 0, paramErrorf(ErrTypeConflict, p.key, "param %s should be a number", p.key)
	}
	v := r.Float()
	if math.IsInf(v, 0) || math.Abs(v) > math.MaxFloat32 {
		return 0, paramErrorf(ErrArithmeticOverflow, p.key, "param %s should be at most %e", p.key, math.MaxFloat32)
	}
	if p.lo != nil && p.hi != nil && (v < float64(*p.lo) || v > float64(*p.hi)) {
		return 0, paramErrorf(ErrOutOfRange, p.key, "param %s out of range [ %s,%s ]", p.key, formatFloat(*p.lo), formatFloat(*p.hi))
	}
	return float32(v), nil
}

func decodeList(p *param[[]int], r gjson.Result) ([]int, error) {
	if !r.IsArray() {
		return nil, paramErrorf(ErrTypeConflict, p.key, "param %s should be an array", p.key)
	}
	elems := r.Array()
	out := make([]int, 0, len(elems))
	for _, e := range elems {
		if !isIntegerLiteral(e) {
			return nil, paramErrorf(ErrTypeConflict, p.key, "param %s should be an array of integers", p.key)
		}
		v, err := strconv.ParseInt(e.Raw, 10, 64)
		if err != nil {
			return nil, paramErrorf(ErrArithmeticOverflow, p.key, "param %s has an element out of the integer domain", p.key)
		}
		out = append(out, int(v))
	}
	return out, nil
}

func isIntegerLiteral(r gjson.Result) bool {
	if r.Type != gjson.Number {
		return false
	}
	return !strings.ContainsAny(r.Raw, ".eE")
}

func formatFloat(f float32) string {
	if math.IsInf(float64(f), 1) {
		return "inf"
	}
	if math.IsInf(float64(f), -1) {
		return "-inf"
	}
	return strconv.FormatFloat(float64(f), 'f', 6, 32)
}

func cloneValue[T any](v T) T {
	if s, ok := any(v).([]int); ok {
		return any(slices.Clone(s)).(T)
	}
	return v
}
