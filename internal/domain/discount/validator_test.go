package discount

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRuleRepo struct {
	rules   map[string]*Rule
	findErr error
}

func (m *mockRuleRepo) FindByCode(_ context.Context, code string) (*Rule, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	r, ok := m.rules[code]
	if !ok {
		return nil, ErrNotFound
	}
	return r, nil
}

func (m *mockRuleRepo) IncrementUsage(_ context.Context, _ string) error {
	return nil
}

func newValidator(rules ...*Rule) *RepoValidator {
	byCode := make(map[string]*Rule, len(rules))
	for _, r := range rules {
		byCode[r.Code] = r
	}
	v := NewRepoValidator(&mockRuleRepo{rules: byCode})
	v.now = func() time.Time { return time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC) }
	return v
}

func percentageRule(code string, value int64) *Rule {
	return &Rule{
		Code:   code,
		Kind:   KindPercentage,
		Value:  decimal.NewFromInt(value),
		Active: true,
		Scope:  ScopeAll,
	}
}

func cartWith(subtotal string) Cart {
	return Cart{Subtotal: decimal.RequireFromString(subtotal)}
}

func TestValidate_PercentageAmount(t *testing.T) {
	v := newValidator(percentageRule("SAVE10", 10))

	applied, err := v.Validate(context.Background(), "SAVE10", cartWith("80.00"))
	require.NoError(t, err)

	assert.Equal(t, "SAVE10", applied.Code)
	assert.Equal(t, "8.00", applied.Amount.StringFixed(2))
}

func TestValidate_PercentageRounding(t *testing.T) {
	v := newValidator(percentageRule("SAVE15", 15))

	applied, err := v.Validate(context.Background(), "SAVE15", cartWith("33.33"))
	require.NoError(t, err)

	// 33.33 * 0.15 = 4.9995, rounded half-up to cents.
	assert.Equal(t, "5.00", applied.Amount.StringFixed(2))
}

func TestValidate_FixedAmountCappedAtSubtotal(t *testing.T) {
	rule := &Rule{
		Code:   "TENOFF",
		Kind:   KindFixed,
		Value:  decimal.NewFromInt(10),
		Active: true,
		Scope:  ScopeAll,
	}
	v := newValidator(rule)

	applied, err := v.Validate(context.Background(), "TENOFF", cartWith("6.50"))
	require.NoError(t, err)
	assert.Equal(t, "6.50", applied.Amount.StringFixed(2), "discount never exceeds the subtotal")

	applied, err = v.Validate(context.Background(), "TENOFF", cartWith("42.00"))
	require.NoError(t, err)
	assert.Equal(t, "10.00", applied.Amount.StringFixed(2))
}

func TestValidate_PercentageCappedAtSubtotal(t *testing.T) {
	// A rule authored with a value over 100 must not drive the total
	// negative.
	v := newValidator(percentageRule("OOPS150", 150))

	applied, err := v.Validate(context.Background(), "OOPS150", cartWith("40.00"))
	require.NoError(t, err)
	assert.Equal(t, "40.00", applied.Amount.StringFixed(2), "discount never exceeds the subtotal")
}

func TestValidate_CanonicalizesCode(t *testing.T) {
	v := newValidator(percentageRule("SAVE10", 10))

	applied, err := v.Validate(context.Background(), "  save10 ", cartWith("50.00"))
	require.NoError(t, err)
	assert.Equal(t, "SAVE10", applied.Code)
}

func TestValidate_Rejections(t *testing.T) {
	yesterday := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	tomorrow := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		rule   *Rule
		cart   Cart
		reason Reason
	}{
		{
			name:   "inactive",
			rule:   &Rule{Code: "CODE", Kind: KindPercentage, Value: decimal.NewFromInt(10), Active: false, Scope: ScopeAll},
			cart:   cartWith("50.00"),
			reason: ReasonInactive,
		},
		{
			name:   "not started",
			rule:   &Rule{Code: "CODE", Kind: KindPercentage, Value: decimal.NewFromInt(10), Active: true, Scope: ScopeAll, StartsAt: &tomorrow},
			cart:   cartWith("50.00"),
			reason: ReasonNotStarted,
		},
		{
			name:   "expired",
			rule:   &Rule{Code: "CODE", Kind: KindPercentage, Value: decimal.NewFromInt(10), Active: true, Scope: ScopeAll, EndsAt: &yesterday},
			cart:   cartWith("50.00"),
			reason: ReasonExpired,
		},
		{
			name:   "usage cap reached",
			rule:   &Rule{Code: "CODE", Kind: KindPercentage, Value: decimal.NewFromInt(10), Active: true, Scope: ScopeAll, MaxUses: 100, UsedCount: 100},
			cart:   cartWith("50.00"),
			reason: ReasonUsageLimitReached,
		},
		{
			name:   "below minimum",
			rule:   &Rule{Code: "CODE", Kind: KindPercentage, Value: decimal.NewFromInt(10), Active: true, Scope: ScopeAll, MinOrderValue: decimal.NewFromInt(60)},
			cart:   cartWith("50.00"),
			reason: ReasonBelowMinimum,
		},
		{
			name:   "product scope miss",
			rule:   &Rule{Code: "CODE", Kind: KindPercentage, Value: decimal.NewFromInt(10), Active: true, Scope: ScopeProducts, ProductIDs: []string{"p9"}},
			cart:   Cart{Subtotal: decimal.NewFromInt(50), ProductIDs: []string{"p1", "p2"}},
			reason: ReasonNotApplicable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newValidator(tt.rule)

			_, err := v.Validate(context.Background(), "CODE", tt.cart)

			var rej *RejectedError
			require.ErrorAs(t, err, &rej)
			assert.Equal(t, tt.reason, rej.Reason)
		})
	}
}

func TestValidate_UnknownCode(t *testing.T) {
	v := newValidator()

	_, err := v.Validate(context.Background(), "NOPE", cartWith("50.00"))

	var rej *RejectedError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, ReasonNotFound, rej.Reason)
	assert.Equal(t, "NOPE", rej.Code)
}

func TestValidate_UnderUsageCapStillValid(t *testing.T) {
	rule := percentageRule("LIMITED", 20)
	rule.MaxUses = 100
	rule.UsedCount = 99
	v := newValidator(rule)

	applied, err := v.Validate(context.Background(), "LIMITED", cartWith("50.00"))
	require.NoError(t, err)
	assert.Equal(t, "10.00", applied.Amount.StringFixed(2))
}

func TestValidate_ScopeMatchesVariant(t *testing.T) {
	rule := &Rule{
		Code:       "VARIANT5",
		Kind:       KindFixed,
		Value:      decimal.NewFromInt(5),
		Active:     true,
		Scope:      ScopeVariants,
		VariantIDs: []string{"v7"},
	}
	v := newValidator(rule)

	_, err := v.Validate(context.Background(), "VARIANT5", Cart{
		Subtotal:   decimal.NewFromInt(40),
		VariantIDs: []string{"v1", "v7"},
	})
	require.NoError(t, err)
}

func TestValidate_RepositoryFailure(t *testing.T) {
	v := NewRepoValidator(&mockRuleRepo{findErr: errors.New("connection refused")})

	_, err := v.Validate(context.Background(), "SAVE10", cartWith("50.00"))
	require.Error(t, err)

	var rej *RejectedError
	assert.False(t, errors.As(err, &rej), "an infrastructure failure is not a rejection")
}
