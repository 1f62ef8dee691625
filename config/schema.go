package config

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync/atomic"

	"github.com/tidwall/gjson"
)

var logger atomic.Pointer[slog.Logger]

func init() {
	logger.Store(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// SetLogger sets the logger used to report validation failures.
// Passing nil restores the default, which discards everything.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger.Store(l)
}

func getLogger() *slog.Logger { return logger.Load() }

// Schema is the registry of parameters for one config instance.
//
// Each parameter writes into a Value slot owned by the config struct the
// schema was built for. A schema is single-writer: Load must not be called
// concurrently, and a concurrent call is rejected with ErrConcurrentLoad.
type Schema struct {
	entries map[string]entry
	loading atomic.Bool
}

// NewSchema returns an empty schema.
func NewSchema() *Schema {
	return &Schema{entries: make(map[string]entry)}
}

// StringVar registers a string parameter bound to slot.
func (s *Schema) StringVar(name string, slot *String) *Builder[string] {
	return register(s, name, KindString, slot, decodeString)
}

// FloatVar registers a float parameter bound to slot.
func (s *Schema) FloatVar(name string, slot *Float) *Builder[float32] {
	return register(s, name, KindFloat, slot, decodeFloat)
}

// IntVar registers an int parameter bound to slot.
func (s *Schema) IntVar(name string, slot *Int) *Builder[int32] {
	return register(s, name, KindInt, slot, decodeInt)
}

// ListVar registers an integer-list parameter bound to slot.
func (s *Schema) ListVar(name string, slot *List) *Builder[[]int] {
	return register(s, name, KindList, slot, decodeList)
}

// BoolVar registers a bool parameter bound to slot.
func (s *Schema) BoolVar(name string, slot *Bool) *Builder[bool] {
	return register(s, name, KindBool, slot, decodeBool)
}

func register[T any](s *Schema, name string, k Kind, slot *Value[T], decode func(*param[T], gjson.Result) (T, error)) *Builder[T] {
	if slot == nil {
		panic(fmt.Sprintf("config: nil slot for param %q", name))
	}
	if _, dup := s.entries[name]; dup {
		panic(fmt.Sprintf("config: param %q registered twice", name))
	}
	p := &param[T]{key: name, k: k, slot: slot, decode: decode}
	s.entries[name] = p
	return &Builder[T]{p: p}
}

// Names returns the registered parameter names in sorted order.
func (s *Schema) Names() []string {
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the description of a registered parameter.
func (s *Schema) Lookup(name string) (EntryInfo, bool) {
	e, ok := s.entries[name]
	if !ok {
		return EntryInfo{}, false
	}
	return e.info(), true
}

// Entries describes every registered parameter, sorted by name.
func (s *Schema) Entries() []EntryInfo {
	out := make([]EntryInfo, 0, len(s.entries))
	for _, name := range s.Names() {
		out = append(out, s.entries[name].info())
	}
	return out
}

// Load validates doc for phase and writes the accepted values into their
// slots.
//
// Only parameters whose phase mask intersects phase are considered. Load
// stops at the first failure and returns a *ParamError; slots written
// before the failure are restored, so a failed Load leaves the config as
// it was.
func (s *Schema) Load(doc Document, phase Phase) error {
	if !s.loading.CompareAndSwap(false, true) {
		return ErrConcurrentLoad
	}
	defer s.loading.Store(false)

	var undo []func()
	for _, name := range s.Names() {
		e := s.entries[name]
		if !e.phases().Has(phase) {
			continue
		}
		restore, err := e.load(doc)
		if err != nil {
			for i := len(undo) - 1; i >= 0; i-- {
				undo[i]()
			}
			getLogger().Error("param validation failed",
				"param", name,
				"phase", phase.String(),
				"error", err,
			)
			return err
		}
		if restore != nil {
			undo = append(undo, restore)
		}
	}
	return nil
}
