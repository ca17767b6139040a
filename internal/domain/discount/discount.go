// Package discount implements promo-code validation and amount computation.
//
// Validation never blocks a purchase: the checkout orchestrator drops an
// invalid code and proceeds at full price. The usage counter is owned by the
// commit path, not the validator, so a code is only consumed on a guaranteed
// commit (cash-on-delivery immediately, card on confirmed payment).
package discount

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind enumerates the supported discount strategies.
type Kind string

const (
	// KindPercentage reduces the subtotal by a percentage.
	KindPercentage Kind = "percentage"
	// KindFixed reduces the subtotal by a fixed amount, capped at the subtotal.
	KindFixed Kind = "fixed"
)

// Scope restricts which carts a rule applies to.
type Scope string

const (
	// ScopeAll applies to every cart.
	ScopeAll Scope = "all"
	// ScopeProducts applies only when the cart contains one of ProductIDs.
	ScopeProducts Scope = "products"
	// ScopeVariants applies only when the cart contains one of VariantIDs.
	ScopeVariants Scope = "variants"
)

// Reason is the single, specific cause a code was rejected.
type Reason string

const (
	ReasonNotFound          Reason = "not_found"
	ReasonInactive          Reason = "inactive"
	ReasonNotStarted        Reason = "not_started"
	ReasonExpired           Reason = "expired"
	ReasonUsageLimitReached Reason = "usage_limit_reached"
	ReasonBelowMinimum      Reason = "below_minimum"
	ReasonNotApplicable     Reason = "not_applicable"
)

// RejectedError reports why a code cannot be applied.
type RejectedError struct {
	Code   string
	Reason Reason
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("discount %q rejected: %s", e.Code, e.Reason)
}

// Rule defines a discount's behaviour and eligibility constraints.
// Codes are canonicalized to upper case at both write and read time.
type Rule struct {
	Code          string
	Kind          Kind
	Value         decimal.Decimal
	MinOrderValue decimal.Decimal // zero means no minimum
	MaxUses       int             // zero means unlimited
	UsedCount     int
	StartsAt      *time.Time
	EndsAt        *time.Time
	Active        bool
	Scope         Scope
	ProductIDs    []string
	VariantIDs    []string
	Description   string
}

// Applied is a successfully validated discount with its computed amount.
type Applied struct {
	Code        string
	Amount      decimal.Decimal
	Description string
}

// ErrNotFound is the repository-level miss; the validator maps it to
// ReasonNotFound.
var ErrNotFound = &RejectedError{Reason: ReasonNotFound}

// Repository provides lookup and atomic usage accounting for discount rules.
type Repository interface {
	// FindByCode looks a rule up by its canonical (upper-case) code.
	FindByCode(ctx context.Context, code string) (*Rule, error)

	// IncrementUsage bumps the usage counter in a single conditional
	// statement that also enforces the cap: the counter never exceeds
	// MaxUses even under concurrent redemption. Returns a RejectedError
	// with ReasonUsageLimitReached when the cap would be crossed.
	IncrementUsage(ctx context.Context, code string) error
}

// Canonical returns the storage form of a code: trimmed, upper-cased.
func Canonical(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
