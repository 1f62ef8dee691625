package config

// Builder attaches metadata to a freshly registered parameter.
//
// All methods return the receiver so calls can be chained. Nothing is
// validated here; values are only checked by Schema.Load.
type Builder[T any] struct {
	p *param[T]
}

// SetDefault stores v as the default and writes it into the slot, so an
// unloaded config is already in a valid state.
func (b *Builder[T]) SetDefault(v T) *Builder[T] {
	def := cloneValue(v)
	b.p.def = &def
	b.p.slot.Set(v)
	return b
}

// SetRange sets inclusive bounds. Only int and float parameters honor it.
func (b *Builder[T]) SetRange(lo, hi T) *Builder[T] {
	b.p.lo, b.p.hi = &lo, &hi
	return b
}

// AllowEmptyWithoutDefault lets the parameter stay unset when it is absent
// from the document and has no default.
func (b *Builder[T]) AllowEmptyWithoutDefault() *Builder[T] {
	b.p.allowEmpty = true
	return b
}

// Description documents the parameter.
func (b *Builder[T]) Description(s string) *Builder[T] {
	b.p.desc = s
	return b
}

func (b *Builder[T]) ForTrain() *Builder[T]       { return b.forPhase(PhaseTrain) }
func (b *Builder[T]) ForSearch() *Builder[T]      { return b.forPhase(PhaseSearch) }
func (b *Builder[T]) ForRangeSearch() *Builder[T] { return b.forPhase(PhaseRangeSearch) }
func (b *Builder[T]) ForFeder() *Builder[T]       { return b.forPhase(PhaseFeder) }
func (b *Builder[T]) ForDeserialize() *Builder[T] { return b.forPhase(PhaseDeserialize) }

func (b *Builder[T]) ForDeserializeFromFile() *Builder[T] {
	return b.forPhase(PhaseDeserializeFromFile)
}

// ForTrainAndSearch marks the parameter for TRAIN, SEARCH and RANGE_SEARCH.
func (b *Builder[T]) ForTrainAndSearch() *Builder[T] {
	return b.forPhase(PhaseTrainAndSearch)
}

func (b *Builder[T]) forPhase(p Phase) *Builder[T] {
	b.p.mask |= p
	return b
}
