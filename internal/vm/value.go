package vm

import "strconv"

// Value is the runtime datum. Numbers only for now; widening to a tagged
// union means changing this type and String.
type Value float64

// String renders the value like C's %g: six significant digits,
// trailing zeros dropped
func (v Value) String() string {
	return strconv.FormatFloat(float64(v), 'g', 6, 64)
}

// ConstantPool is an append-only table of values addressed by index
type ConstantPool struct {
	Values []Value
}

// Add appends a value and returns its index
func (p *ConstantPool) Add(v Value) int {
	p.Values = append(p.Values, v)
	return len(p.Values) - 1
}

// Len returns the number of constants in the pool
func (p *ConstantPool) Len() int {
	return len(p.Values)
}

// At returns the constant at index i, or false if i is out of range
func (p *ConstantPool) At(i int) (Value, bool) {
	if i < 0 || i >= len(p.Values) {
		return 0, false
	}
	return p.Values[i], true
}
