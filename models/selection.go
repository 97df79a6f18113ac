package models

import (
	"errors"
	"fmt"
)

// ErrInvalidSelection is returned when a selection carries an unknown keyword
var ErrInvalidSelection = errors.New("invalid selection")

// ErrInvalidThresholds is returned when KPI thresholds fail validation
var ErrInvalidThresholds = errors.New("invalid thresholds")

// RangeKey is the date range keyword of a selection
type RangeKey string

const (
	RangeToday RangeKey = "today"
	Range7d    RangeKey = "7d"
	Range30d   RangeKey = "30d"
)

// Days resolves the keyword to a trailing day count. Unknown keys resolve to 30.
func (r RangeKey) Days() int {
	switch r {
	case RangeToday:
		return 1
	case Range7d:
		return 7
	default:
		return 30
	}
}

// Valid reports whether r is one of the known keywords
func (r RangeKey) Valid() bool {
	return r == RangeToday || r == Range7d || r == Range30d
}

// Valid reports whether s is a known shift
func (s ShiftCode) Valid() bool {
	return s == ShiftA || s == ShiftB || s == ShiftC
}

// Valid reports whether p is a known product
func (p ProductCode) Valid() bool {
	return p == ProductA || p == ProductB || p == ProductC
}

// Selection is the active dashboard filter
type Selection struct {
	FactoryID string      `json:"factory_id"`
	Range     RangeKey    `json:"range"`
	Shift     ShiftCode   `json:"shift"`
	Product   ProductCode `json:"product"`
}

// DefaultSelection is the view the demo opens with
func DefaultSelection() Selection {
	return Selection{
		FactoryID: HomeFactoryID,
		Range:     Range7d,
		Shift:     ShiftA,
		Product:   ProductA,
	}
}

// Validate checks the keyword fields. The factory id is not checked:
// an unknown factory is a valid, empty view.
func (s Selection) Validate() error {
	if !s.Range.Valid() {
		return fmt.Errorf("%w: range %q", ErrInvalidSelection, s.Range)
	}
	if !s.Shift.Valid() {
		return fmt.Errorf("%w: shift %q", ErrInvalidSelection, s.Shift)
	}
	if !s.Product.Valid() {
		return fmt.Errorf("%w: product %q", ErrInvalidSelection, s.Product)
	}
	return nil
}

// SelectionPatch is a partial update; nil fields keep their current value
type SelectionPatch struct {
	FactoryID *string      `json:"factory_id,omitempty"`
	Range     *RangeKey    `json:"range,omitempty"`
	Shift     *ShiftCode   `json:"shift,omitempty"`
	Product   *ProductCode `json:"product,omitempty"`
}

// Apply merges the patch into s and validates the result
func (p SelectionPatch) Apply(s Selection) (Selection, error) {
	if p.FactoryID != nil {
		s.FactoryID = *p.FactoryID
	}
	if p.Range != nil {
		s.Range = *p.Range
	}
	if p.Shift != nil {
		s.Shift = *p.Shift
	}
	if p.Product != nil {
		s.Product = *p.Product
	}
	if err := s.Validate(); err != nil {
		return Selection{}, err
	}
	return s, nil
}
