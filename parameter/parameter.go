// Package parameter implements scalar and vector model parameters
// which notify listeners on change.
package parameter

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ChangeType describes what happened to a parameter.
type ChangeType int

// Change types.
const (
	// ValueChanged means a single value has changed.
	ValueChanged ChangeType = iota
	// AllValuesChanged means all the values could have changed,
	// index is -1 in this case.
	AllValuesChanged
	// DimensionChanged means the parameter was resized.
	DimensionChanged
)

// Listener is notified with the parameter, the index of changed
// value (-1 for all values) and the change type.
type Listener func(p *Parameter, index int, ct ChangeType)

// Parameter is a named vector of float64 values with bounds and
// change listeners. Store and Restore keep a single saved copy.
type Parameter struct {
	name      string
	values    []float64
	stored    []float64
	min       float64
	max       float64
	listeners []Listener
}

// New creates a new parameter with given values.
func New(name string, values ...float64) *Parameter {
	if len(values) == 0 {
		values = []float64{0}
	}
	v := make([]float64, len(values))
	copy(v, values)
	return &Parameter{
		name:   name,
		values: v,
		stored: make([]float64, len(v)),
		min:    math.Inf(-1),
		max:    math.Inf(+1),
	}
}

// Name returns parameter name.
func (p *Parameter) Name() string {
	return p.name
}

// AddListener adds a change listener.
func (p *Parameter) AddListener(l Listener) {
	p.listeners = append(p.listeners, l)
}

func (p *Parameter) fire(index int, ct ChangeType) {
	for _, l := range p.listeners {
		l(p, index, ct)
	}
}

// Dimension returns number of values.
func (p *Parameter) Dimension() int {
	return len(p.values)
}

// SetDimension resizes the parameter. New values are copies of the
// last value. Listeners are not notified, resizing is an
// initialization step.
func (p *Parameter) SetDimension(n int) {
	if n <= 0 {
		panic("parameter dimension should be positive")
	}
	if n == len(p.values) {
		return
	}
	v := make([]float64, n)
	copy(v, p.values)
	for i := len(p.values); i < n; i++ {
		v[i] = p.values[len(p.values)-1]
	}
	p.values = v
	p.stored = make([]float64, n)
}

// Value returns i-th value.
func (p *Parameter) Value(i int) float64 {
	return p.values[i]
}

// Values returns a copy of all the values.
func (p *Parameter) Values() []float64 {
	v := make([]float64, len(p.values))
	copy(v, p.values)
	return v
}

// SetValue sets i-th value and notifies listeners.
func (p *Parameter) SetValue(i int, v float64) {
	if p.values[i] == v {
		// do nothing if value has not changed
		return
	}
	p.values[i] = v
	p.fire(i, ValueChanged)
}

// SetValues sets all the values and notifies listeners once with
// index -1.
func (p *Parameter) SetValues(v []float64) error {
	if len(v) != len(p.values) {
		return fmt.Errorf("parameter %s: expected %d values, got %d", p.name, len(p.values), len(v))
	}
	copy(p.values, v)
	p.fire(-1, AllValuesChanged)
	return nil
}

// SetMin sets the lower bound.
func (p *Parameter) SetMin(min float64) {
	p.min = min
}

// SetMax sets the upper bound.
func (p *Parameter) SetMax(max float64) {
	p.max = max
}

// GetMin returns the lower bound.
func (p *Parameter) GetMin() float64 {
	return p.min
}

// GetMax returns the upper bound.
func (p *Parameter) GetMax() float64 {
	return p.max
}

// ValueInRange checks whether v is within the bounds.
func (p *Parameter) ValueInRange(v float64) bool {
	if v < p.min || v > p.max {
		return false
	}
	return true
}

// InRange checks whether all the values are within the bounds.
func (p *Parameter) InRange() bool {
	for _, v := range p.values {
		if !p.ValueInRange(v) {
			return false
		}
	}
	return true
}

// Store saves current values.
func (p *Parameter) Store() {
	copy(p.stored, p.values)
}

// Restore brings back the stored values. Listeners are not
// notified, models restore their own state.
func (p *Parameter) Restore() {
	p.values, p.stored = p.stored, p.values
}

// String returns values separated by tabs.
func (p *Parameter) String() string {
	s := make([]string, len(p.values))
	for i, v := range p.values {
		s[i] = strconv.FormatFloat(v, 'f', 6, 64)
	}
	return strings.Join(s, "\t")
}
