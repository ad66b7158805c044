package qtable

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// MaxDim bounds both table dimensions. Eleven fits the canonical
// eleven-point shading grid.
const MaxDim = 11

// ErrDimensions is returned when a table is built with out-of-range sizes.
var ErrDimensions = errors.New("qtable: invalid dimensions")

// #region table
// Table maps (state, action) pairs to value estimates. It is not safe for
// concurrent use.
type Table struct {
	m *mat.Dense
}

// New returns a zeroed states × actions table.
func New(states, actions int) (*Table, error) {
	if err := checkDims(states, actions); err != nil {
		return nil, err
	}
	return &Table{m: mat.NewDense(states, actions, nil)}, nil
}

// FromFlat builds a table from row-major values, as produced by Flat.
func FromFlat(states, actions int, values []float64) (*Table, error) {
	if err := checkDims(states, actions); err != nil {
		return nil, err
	}
	if len(values) != states*actions {
		return nil, fmt.Errorf("%w: %d values for %dx%d table", ErrDimensions, len(values), states, actions)
	}
	data := make([]float64, len(values))
	copy(data, values)
	return &Table{m: mat.NewDense(states, actions, data)}, nil
}

func checkDims(states, actions int) error {
	if states < 1 || states > MaxDim || actions < 1 || actions > MaxDim {
		return fmt.Errorf("%w: %dx%d (each must be in [1, %d])", ErrDimensions, states, actions, MaxDim)
	}
	return nil
}

// States is the number of rows.
func (t *Table) States() int {
	r, _ := t.m.Dims()
	return r
}

// Actions is the number of columns.
func (t *Table) Actions() int {
	_, c := t.m.Dims()
	return c
}

// #endregion table

// #region access
// Value returns Q[s, a].
func (t *Table) Value(s, a int) float64 {
	return t.m.At(s, a)
}

// Set overwrites Q[s, a].
func (t *Table) Set(s, a int, v float64) {
	t.m.Set(s, a, v)
}

// Row returns a copy of the action values for state s.
func (t *Table) Row(s int) []float64 {
	return mat.Row(nil, s, t.m)
}

// BestAction returns the index of the largest value in row s. Ties go to the
// lowest index.
func (t *Table) BestAction(s int) int {
	return floats.MaxIdx(t.m.RawRowView(s))
}

// MaxValue returns the largest value in row s.
func (t *Table) MaxValue(s int) float64 {
	return floats.Max(t.m.RawRowView(s))
}

// Update moves Q[s, a] a fraction alpha of the way towards target and
// returns the new value.
func (t *Table) Update(s, a int, target, alpha float64) float64 {
	old := t.m.At(s, a)
	v := old + alpha*(target-old)
	t.m.Set(s, a, v)
	return v
}

// #endregion access

// #region lifecycle
// Reset zeroes every cell.
func (t *Table) Reset() {
	t.m.Zero()
}

// Clone returns an independent copy.
func (t *Table) Clone() *Table {
	return &Table{m: mat.DenseCopyOf(t.m)}
}

// CopyFrom overwrites every cell with src's values. Both tables must have the
// same shape.
func (t *Table) CopyFrom(src *Table) error {
	if src.States() != t.States() || src.Actions() != t.Actions() {
		return fmt.Errorf("%w: copy %dx%d into %dx%d", ErrDimensions,
			src.States(), src.Actions(), t.States(), t.Actions())
	}
	t.m.Copy(src.m)
	return nil
}

// Flat returns the values in row-major order.
func (t *Table) Flat() []float64 {
	r, c := t.m.Dims()
	out := make([]float64, 0, r*c)
	for s := 0; s < r; s++ {
		out = append(out, t.m.RawRowView(s)...)
	}
	return out
}

// #endregion lifecycle
