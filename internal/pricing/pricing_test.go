package pricing

import (
	"errors"
	"testing"
	"time"

	"aurelia/backend/internal/domain"
)

var testShipping = domain.ShippingConfig{
	BasePriceCents:     9900,
	FreeThresholdCents: 150000,
	TaxPercent:         18,
}

func mustLine(t *testing.T, id string, qty int, price int64, sale *int64) CartLine {
	t.Helper()
	line, err := NewCartLine(id, id, qty, price, sale)
	if err != nil {
		t.Fatalf("NewCartLine(%s): %v", id, err)
	}
	return line
}

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }

func TestNewCartLineRejectsInvalidInput(t *testing.T) {
	cases := []struct {
		name  string
		id    string
		qty   int
		price int64
		sale  *int64
	}{
		{"zero qty", "p1", 0, 1000, nil},
		{"negative qty", "p1", -2, 1000, nil},
		{"zero price", "p1", 1, 0, nil},
		{"negative price", "p1", 1, -50, nil},
		{"sale equals list", "p1", 1, 1000, int64Ptr(1000)},
		{"sale above list", "p1", 1, 1000, int64Ptr(1200)},
		{"non-positive sale", "p1", 1, 1000, int64Ptr(0)},
		{"missing product id", "", 1, 1000, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewCartLine(tc.id, "x", tc.qty, tc.price, tc.sale); !errors.Is(err, ErrInvalidLine) {
				t.Fatalf("expected ErrInvalidLine, got %v", err)
			}
		})
	}
}

func TestEffectiveUnitPricePrefersSale(t *testing.T) {
	line := mustLine(t, "p1", 2, 5000, int64Ptr(4000))
	if got := line.EffectiveUnitPriceCents(); got != 4000 {
		t.Fatalf("expected 4000, got %d", got)
	}
	if got := line.LineTotalCents(); got != 8000 {
		t.Fatalf("expected line total 8000, got %d", got)
	}

	noSale := mustLine(t, "p2", 3, 5000, nil)
	if got := noSale.LineTotalCents(); got != 15000 {
		t.Fatalf("expected line total 15000, got %d", got)
	}
}

func TestComputeShippingBelowThreshold(t *testing.T) {
	lines := []CartLine{mustLine(t, "p1", 2, 50000, nil)}
	quote := Compute(lines, nil, testShipping)

	want := domain.PriceQuote{
		SubtotalCents: 100000,
		DiscountCents: 0,
		ShippingCents: 9900,
		TaxCents:      18000,
		TotalCents:    127900,
	}
	if quote != want {
		t.Fatalf("quote mismatch: got %+v want %+v", quote, want)
	}
}

func TestComputeFreeShippingAtThreshold(t *testing.T) {
	lines := []CartLine{mustLine(t, "p1", 4, 50000, nil)}
	quote := Compute(lines, nil, testShipping)

	want := domain.PriceQuote{
		SubtotalCents: 200000,
		DiscountCents: 0,
		ShippingCents: 0,
		TaxCents:      36000,
		TotalCents:    236000,
	}
	if quote != want {
		t.Fatalf("quote mismatch: got %+v want %+v", quote, want)
	}
}

func TestComputePercentageCoupon(t *testing.T) {
	lines := []CartLine{mustLine(t, "p1", 2, 50000, nil)}
	coupon := &domain.Coupon{
		Code:          "SAVE20",
		DiscountType:  domain.DiscountTypePercentage,
		DiscountValue: 20,
		Active:        true,
	}
	quote := Compute(lines, coupon, testShipping)

	want := domain.PriceQuote{
		SubtotalCents: 100000,
		DiscountCents: 20000,
		ShippingCents: 9900,
		TaxCents:      14400,
		TotalCents:    104300,
	}
	if quote != want {
		t.Fatalf("quote mismatch: got %+v want %+v", quote, want)
	}
}

func TestComputeFixedCouponClampedToSubtotal(t *testing.T) {
	lines := []CartLine{mustLine(t, "p1", 1, 3000, nil)}
	coupon := &domain.Coupon{
		Code:          "BIGFIXED",
		DiscountType:  domain.DiscountTypeFixed,
		DiscountValue: 5000,
		Active:        true,
	}
	quote := Compute(lines, coupon, testShipping)

	if quote.DiscountCents != 3000 {
		t.Fatalf("expected discount clamped to 3000, got %d", quote.DiscountCents)
	}
	if quote.TaxCents != 0 {
		t.Fatalf("expected zero tax on fully discounted cart, got %d", quote.TaxCents)
	}
	if quote.TotalCents != 9900 {
		t.Fatalf("expected total to be shipping only, got %d", quote.TotalCents)
	}
}

func TestComputeDiscountIgnoredForShippingThreshold(t *testing.T) {
	// Raw subtotal clears the threshold even though the discounted amount
	// would not.
	lines := []CartLine{mustLine(t, "p1", 3, 50000, nil)}
	coupon := &domain.Coupon{
		Code:          "HALF",
		DiscountType:  domain.DiscountTypePercentage,
		DiscountValue: 50,
		Active:        true,
	}
	quote := Compute(lines, coupon, testShipping)
	if quote.ShippingCents != 0 {
		t.Fatalf("expected free shipping on raw subtotal 150000, got %d", quote.ShippingCents)
	}
}

func TestComputeZeroThresholdDisablesFreeShipping(t *testing.T) {
	cfg := domain.ShippingConfig{BasePriceCents: 9900, FreeThresholdCents: 0, TaxPercent: 18}
	lines := []CartLine{mustLine(t, "p1", 10, 100000, nil)}
	quote := Compute(lines, nil, cfg)
	if quote.ShippingCents != 9900 {
		t.Fatalf("expected base shipping with threshold disabled, got %d", quote.ShippingCents)
	}
}

func TestComputeEmptyCart(t *testing.T) {
	quote := Compute(nil, nil, testShipping)
	if quote != (domain.PriceQuote{}) {
		t.Fatalf("expected zero quote for empty cart, got %+v", quote)
	}
}

func TestValidateCouponOrdering(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(24 * time.Hour)

	cases := []struct {
		name       string
		coupon     *domain.Coupon
		subtotal   int64
		wantReason string
	}{
		{"nil coupon", nil, 100000, ReasonNotFound},
		{
			"inactive coupon reads as not found",
			&domain.Coupon{Code: "OFF", Active: false},
			100000, ReasonNotFound,
		},
		{
			"expired",
			&domain.Coupon{Code: "OLD", Active: true, ExpiresAt: &past},
			100000, ReasonExpired,
		},
		{
			"expired wins over usage limit",
			&domain.Coupon{Code: "OLD", Active: true, ExpiresAt: &past, MaxUses: intPtr(1), UsedCount: 1},
			100000, ReasonExpired,
		},
		{
			"usage limit reached",
			&domain.Coupon{Code: "ONCE", Active: true, ExpiresAt: &future, MaxUses: intPtr(1), UsedCount: 1},
			100000, ReasonUsageLimitReached,
		},
		{
			"minimum not met",
			&domain.Coupon{Code: "MIN", Active: true, MinOrderCents: 150000},
			100000, ReasonMinimumNotMet,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateCoupon(tc.coupon, tc.subtotal, now)
			var rej *CouponRejection
			if !errors.As(err, &rej) {
				t.Fatalf("expected CouponRejection, got %v", err)
			}
			if rej.Reason != tc.wantReason {
				t.Fatalf("expected reason %q, got %q", tc.wantReason, rej.Reason)
			}
		})
	}
}

func TestValidateCouponAccepts(t *testing.T) {
	future := time.Now().Add(24 * time.Hour)
	coupon := &domain.Coupon{
		Code:          "SAVE20",
		Active:        true,
		ExpiresAt:     &future,
		MaxUses:       intPtr(5),
		UsedCount:     4,
		MinOrderCents: 50000,
	}
	if err := ValidateCoupon(coupon, 100000, time.Now()); err != nil {
		t.Fatalf("expected coupon to validate, got %v", err)
	}
}

func TestValidateCouponMinimumMessageReportsConfiguredMinimum(t *testing.T) {
	coupon := &domain.Coupon{Code: "MIN", Active: true, MinOrderCents: 150000}
	err := ValidateCoupon(coupon, 100000, time.Now())
	var rej *CouponRejection
	if !errors.As(err, &rej) {
		t.Fatalf("expected CouponRejection, got %v", err)
	}
	want := "coupon requires a minimum order of 1500.00"
	if rej.Message != want {
		t.Fatalf("expected message %q, got %q", want, rej.Message)
	}
}

func TestComputeRemovingCouponRestoresBaseQuote(t *testing.T) {
	lines := []CartLine{mustLine(t, "p1", 2, 50000, nil)}
	coupon := &domain.Coupon{
		Code:          "SAVE20",
		DiscountType:  domain.DiscountTypePercentage,
		DiscountValue: 20,
		Active:        true,
	}

	base := Compute(lines, nil, testShipping)
	withCoupon := Compute(lines, coupon, testShipping)
	removed := Compute(lines, nil, testShipping)

	if withCoupon.DiscountCents == 0 {
		t.Fatalf("expected coupon to discount the cart")
	}
	if removed != base {
		t.Fatalf("quote after removing coupon = %+v, want %+v", removed, base)
	}
	if removed.DiscountCents != 0 {
		t.Fatalf("discount = %d, want 0 after removal", removed.DiscountCents)
	}
}

func TestNormalizeCouponCode(t *testing.T) {
	if got := NormalizeCouponCode("  save20 "); got != "SAVE20" {
		t.Fatalf("expected SAVE20, got %q", got)
	}
}

func TestFormatCents(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{0, "0.00"},
		{5, "0.05"},
		{999, "9.99"},
		{150000, "1500.00"},
		{-1234, "-12.34"},
	}
	for _, tc := range cases {
		if got := FormatCents(tc.in); got != tc.want {
			t.Fatalf("FormatCents(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
