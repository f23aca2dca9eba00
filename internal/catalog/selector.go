package catalog

import (
	"context"
	"errors"
	"sync"

	"github.com/obdai/obdai/pkg/models"
)

// Status is the load state of one option list.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusLoaded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusLoaded:
		return "loaded"
	case StatusFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Field names a dependent option list.
type Field string

const (
	FieldMake  Field = "make"
	FieldModel Field = "model"
	FieldTrim  Field = "trim"
)

// ErrNotReady is returned when a field is set before its options have loaded.
var ErrNotReady = errors.New("upstream options not loaded")

// Options is the state of one option list.
type Options struct {
	Status Status
	Values []string
	Err    error
}

// Selector drives year → make → model → trim selection. Changing a field
// clears every downstream selection and option list, then loads the options
// of the next field. Results of a load superseded by a later change are
// discarded. Safe for concurrent use.
type Selector struct {
	lookup Lookup

	mu      sync.Mutex
	gen     uint64
	vehicle models.VehicleContext
	lists   map[Field]*Options
}

// NewSelector creates an empty selector backed by lookup.
func NewSelector(lookup Lookup) *Selector {
	s := &Selector{lookup: lookup}
	s.lists = map[Field]*Options{FieldMake: {}, FieldModel: {}, FieldTrim: {}}
	return s
}

// SetYear selects a year and loads its makes.
func (s *Selector) SetYear(ctx context.Context, year string) error {
	s.mu.Lock()
	s.vehicle = models.VehicleContext{Year: year}
	s.reset(FieldMake, FieldModel, FieldTrim)
	if year == "" {
		s.mu.Unlock()
		return nil
	}
	gen := s.begin(FieldMake)
	s.mu.Unlock()

	values, err := s.lookup.Makes(ctx, year)
	return s.finish(gen, FieldMake, values, err)
}

// SetMake selects a make and loads its models.
func (s *Selector) SetMake(ctx context.Context, mk string) error {
	s.mu.Lock()
	if mk != "" && !s.ready(FieldMake) {
		s.mu.Unlock()
		return ErrNotReady
	}
	s.vehicle.Make, s.vehicle.Model, s.vehicle.Trim = mk, "", ""
	s.reset(FieldModel, FieldTrim)
	if mk == "" {
		s.mu.Unlock()
		return nil
	}
	year := s.vehicle.Year
	gen := s.begin(FieldModel)
	s.mu.Unlock()

	values, err := s.lookup.Models(ctx, year, mk)
	return s.finish(gen, FieldModel, values, err)
}

// SetModel selects a model and loads its trims.
func (s *Selector) SetModel(ctx context.Context, model string) error {
	s.mu.Lock()
	if model != "" && !s.ready(FieldModel) {
		s.mu.Unlock()
		return ErrNotReady
	}
	s.vehicle.Model, s.vehicle.Trim = model, ""
	s.reset(FieldTrim)
	if model == "" {
		s.mu.Unlock()
		return nil
	}
	year, mk := s.vehicle.Year, s.vehicle.Make
	gen := s.begin(FieldTrim)
	s.mu.Unlock()

	values, err := s.lookup.Trims(ctx, year, mk, model)
	return s.finish(gen, FieldTrim, values, err)
}

// SetTrim selects a trim. Trim is optional; "" clears it.
func (s *Selector) SetTrim(trim string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vehicle.Trim = trim
}

// State returns a copy of the option list for field.
func (s *Selector) State(field Field) Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.lists[field]
	if !ok {
		return Options{}
	}
	return Options{Status: o.Status, Values: clone(o.Values), Err: o.Err}
}

// Vehicle returns the current selection.
func (s *Selector) Vehicle() models.VehicleContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vehicle
}

// reset clears option lists and invalidates in-flight loads. Caller holds mu.
func (s *Selector) reset(fields ...Field) {
	s.gen++
	for _, f := range fields {
		*s.lists[f] = Options{}
	}
}

// begin marks field as loading. Caller holds mu.
func (s *Selector) begin(field Field) uint64 {
	s.lists[field].Status = StatusLoading
	return s.gen
}

func (s *Selector) finish(gen uint64, field Field, values []string, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return err
	}
	if err != nil {
		*s.lists[field] = Options{Status: StatusFailed, Err: err}
		return err
	}
	*s.lists[field] = Options{Status: StatusLoaded, Values: values}
	return nil
}

// ready reports whether field has loaded a non-empty list. Caller holds mu.
func (s *Selector) ready(field Field) bool {
	o := s.lists[field]
	return o.Status == StatusLoaded && len(o.Values) > 0
}
