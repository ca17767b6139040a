// Package stock defines the per-variant available-unit ledger.
//
// Check is advisory only: a positive result does not guarantee availability
// at commit time. Authority lives solely in Deduct, which decrements each
// counter conditionally on the availability at deduction time.
package stock

import (
	"context"
	"fmt"
	"strings"
)

// Item is a deduction request for a single variant.
type Item struct {
	VariantID string
	Quantity  int
}

// Shortfall describes one variant that cannot satisfy the requested quantity.
type Shortfall struct {
	VariantID string
	Requested int
	Available int
}

// Report is the result of an advisory stock check.
type Report struct {
	Available    bool
	Insufficient []Shortfall
}

// Ledger provides the advisory check and the authoritative conditional deduct.
type Ledger interface {
	// Check reports current availability for the given items without
	// reserving anything.
	Check(ctx context.Context, items []Item) (Report, error)

	// Deduct decrements available units for every item, each decrement
	// conditional on current availability (available >= quantity at UPDATE
	// time). The operation is all-or-nothing across items: if any line
	// fails, no counter is changed and an *InsufficientError is returned.
	Deduct(ctx context.Context, items []Item) error
}

// InsufficientError is returned by Deduct when one or more variants cannot
// cover the requested quantities.
type InsufficientError struct {
	Shortfalls []Shortfall
}

func (e *InsufficientError) Error() string {
	ids := make([]string, len(e.Shortfalls))
	for i, s := range e.Shortfalls {
		ids[i] = s.VariantID
	}
	return fmt.Sprintf("insufficient stock for variants: %s", strings.Join(ids, ", "))
}
