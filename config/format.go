package config

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Formatter is implemented by configs that normalize documents beyond the
// generic coercions of FormatAndCheck.
type Formatter interface {
	FormatDocument(doc Document) (Document, error)
}

// FormatAndCheck normalizes doc before Load.
//
// String-encoded numbers and booleans for registered int, float and bool
// parameters are coerced to their JSON kinds ("10" becomes 10). Keys the
// schema does not know are kept. The input is never modified; on failure
// it is returned unchanged together with a *ParamError.
func (s *Schema) FormatAndCheck(doc Document) (Document, error) {
	out := doc
	for _, key := range doc.Keys() {
		e, ok := s.entries[key]
		if !ok {
			getLogger().Debug("ignoring unknown param", "param", key)
			continue
		}
		r, _ := doc.Lookup(key)
		if r.Type != gjson.String {
			continue
		}

		var (
			v   any
			err error
		)
		switch e.kind() {
		case KindInt:
			v, err = coerceInt(key, r.String())
		case KindFloat:
			v, err = coerceFloat(key, r.String())
		case KindBool:
			v, err = coerceBool(key, r.String())
		default:
			continue
		}
		if err != nil {
			getLogger().Error("param format check failed", "param", key, "error", err)
			return doc, err
		}

		out, err = out.With(key, v)
		if err != nil {
			return doc, err
		}
	}
	return out, nil
}

func coerceInt(name, s string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 0, paramErrorf(ErrArithmeticOverflow, name, "param %s should be at most %d", name, math.MaxInt32)
		}
		return 0, paramErrorf(ErrTypeConflict, name, "param %s should be integer", name)
	}
	if v > math.MaxInt32 {
		return 0, paramErrorf(ErrArithmeticOverflow, name, "param %s should be at most %d", name, math.MaxInt32)
	}
	if v < math.MinInt32 {
		return 0, paramErrorf(ErrArithmeticOverflow, name, "param %s should be at least %d", name, math.MinInt32)
	}
	return v, nil
}

func coerceFloat(name, s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if (err != nil && !errors.Is(err, strconv.ErrRange)) || math.IsNaN(v) {
		return 0, paramErrorf(ErrTypeConflict, name, "param %s should be a number", name)
	}
	if err != nil || math.IsInf(v, 0) || math.Abs(v) > math.MaxFloat32 {
		return 0, paramErrorf(ErrArithmeticOverflow, name, "param %s should be at most %e", name, math.MaxFloat32)
	}
	return v, nil
}

func coerceBool(name, s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, paramErrorf(ErrTypeConflict, name, "param %s should be a boolean", name)
	}
}
