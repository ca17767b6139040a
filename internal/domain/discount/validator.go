package discount

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Cart carries the order context a rule is checked against.
type Cart struct {
	Subtotal   decimal.Decimal
	ProductIDs []string
	VariantIDs []string
}

// Validator validates a code against a cart and computes the discount amount.
type Validator interface {
	Validate(ctx context.Context, code string, cart Cart) (*Applied, error)
}

// RepoValidator implements Validator on top of a Repository.
type RepoValidator struct {
	repo Repository
	now  func() time.Time
}

// NewRepoValidator creates a RepoValidator backed by the given Repository.
func NewRepoValidator(repo Repository) *RepoValidator {
	return &RepoValidator{repo: repo, now: time.Now}
}

// Validate re-checks the code against the current cart and rules and returns
// the computed amount. It never mutates the usage counter; that happens at
// commit time. Every rejection carries exactly one Reason.
func (v *RepoValidator) Validate(ctx context.Context, code string, cart Cart) (*Applied, error) {
	canonical := Canonical(code)

	rule, err := v.repo.FindByCode(ctx, canonical)
	if err != nil {
		var rej *RejectedError
		if errors.As(err, &rej) {
			return nil, &RejectedError{Code: canonical, Reason: ReasonNotFound}
		}
		return nil, errors.Wrap(err, "lookup discount")
	}

	if !rule.Active {
		return nil, &RejectedError{Code: canonical, Reason: ReasonInactive}
	}

	now := v.now()
	if rule.StartsAt != nil && now.Before(*rule.StartsAt) {
		return nil, &RejectedError{Code: canonical, Reason: ReasonNotStarted}
	}
	if rule.EndsAt != nil && now.After(*rule.EndsAt) {
		return nil, &RejectedError{Code: canonical, Reason: ReasonExpired}
	}

	if rule.MaxUses > 0 && rule.UsedCount >= rule.MaxUses {
		return nil, &RejectedError{Code: canonical, Reason: ReasonUsageLimitReached}
	}

	if rule.MinOrderValue.IsPositive() && cart.Subtotal.LessThan(rule.MinOrderValue) {
		return nil, &RejectedError{Code: canonical, Reason: ReasonBelowMinimum}
	}

	if !inScope(rule, cart) {
		return nil, &RejectedError{Code: canonical, Reason: ReasonNotApplicable}
	}

	amount, err := computeAmount(rule, cart.Subtotal)
	if err != nil {
		return nil, err
	}

	return &Applied{
		Code:        rule.Code,
		Amount:      amount,
		Description: rule.Description,
	}, nil
}

// inScope reports whether the cart contains at least one product or variant
// the rule is scoped to.
func inScope(rule *Rule, cart Cart) bool {
	switch rule.Scope {
	case ScopeProducts:
		return intersects(rule.ProductIDs, cart.ProductIDs)
	case ScopeVariants:
		return intersects(rule.VariantIDs, cart.VariantIDs)
	default:
		return true
	}
}

func intersects(want, have []string) bool {
	set := make(map[string]struct{}, len(want))
	for _, id := range want {
		set[id] = struct{}{}
	}
	for _, id := range have {
		if _, ok := set[id]; ok {
			return true
		}
	}
	return false
}

// computeAmount calculates the discount for the rule against the subtotal.
// Percentage: subtotal * value / 100. Fixed: the rule value. Either kind is
// capped at the subtotal and floored at zero, so a mis-authored rule (a
// percentage over 100, a negative value) can never push the total negative.
// Rounded to 2 decimal places.
func computeAmount(rule *Rule, subtotal decimal.Decimal) (decimal.Decimal, error) {
	var amount decimal.Decimal
	switch rule.Kind {
	case KindPercentage:
		amount = subtotal.Mul(rule.Value).Div(hundred)
	case KindFixed:
		amount = rule.Value
	default:
		return decimal.Zero, errors.Errorf("unsupported discount kind: %q", rule.Kind)
	}

	amount = decimal.Min(amount, subtotal)
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	return amount.Round(2), nil
}
