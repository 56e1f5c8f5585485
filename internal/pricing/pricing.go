// Package pricing computes cart price quotes and validates coupons.
// All arithmetic is on int64 cent amounts; percentages are applied with a
// single rounded multiplication so the same inputs always produce the same
// quote on every code path.
package pricing

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"aurelia/backend/internal/domain"
)

var ErrInvalidLine = errors.New("pricing: invalid cart line")

// Coupon rejection reasons, in checking order. A coupon failing several
// checks reports only the first.
const (
	ReasonNotFound          = "not_found"
	ReasonExpired           = "expired"
	ReasonUsageLimitReached = "usage_limit_reached"
	ReasonMinimumNotMet     = "minimum_not_met"
)

// CouponRejection explains why a coupon cannot be applied. It is a normal
// domain outcome, not a transport error.
type CouponRejection struct {
	Reason  string
	Message string
}

func (r *CouponRejection) Error() string { return r.Message }

// CartLine is a validated line item ready for quoting. Construct via
// NewCartLine so invalid quantities and prices never reach the calculator.
type CartLine struct {
	ProductID      string
	Name           string
	ImageURL       string
	Qty            int
	ListPriceCents int64
	SalePriceCents *int64
}

func NewCartLine(productID, name string, qty int, listPriceCents int64, salePriceCents *int64) (CartLine, error) {
	if productID == "" {
		return CartLine{}, fmt.Errorf("%w: missing product id", ErrInvalidLine)
	}
	if qty < 1 {
		return CartLine{}, fmt.Errorf("%w: qty must be at least 1, got %d", ErrInvalidLine, qty)
	}
	if listPriceCents <= 0 {
		return CartLine{}, fmt.Errorf("%w: price must be positive, got %d", ErrInvalidLine, listPriceCents)
	}
	if salePriceCents != nil {
		if *salePriceCents <= 0 {
			return CartLine{}, fmt.Errorf("%w: sale price must be positive, got %d", ErrInvalidLine, *salePriceCents)
		}
		if *salePriceCents >= listPriceCents {
			return CartLine{}, fmt.Errorf("%w: sale price %d not below list price %d", ErrInvalidLine, *salePriceCents, listPriceCents)
		}
	}
	return CartLine{
		ProductID:      productID,
		Name:           name,
		Qty:            qty,
		ListPriceCents: listPriceCents,
		SalePriceCents: salePriceCents,
	}, nil
}

// EffectiveUnitPriceCents is the sale price when one is set, the list price
// otherwise.
func (l CartLine) EffectiveUnitPriceCents() int64 {
	if l.SalePriceCents != nil {
		return *l.SalePriceCents
	}
	return l.ListPriceCents
}

func (l CartLine) LineTotalCents() int64 {
	return l.EffectiveUnitPriceCents() * int64(l.Qty)
}

// Subtotal sums effective line totals. An empty cart has subtotal zero.
func Subtotal(lines []CartLine) int64 {
	var sum int64
	for _, l := range lines {
		sum += l.LineTotalCents()
	}
	return sum
}

// NormalizeCouponCode uppercases and trims a user-entered code so lookups
// are case-insensitive.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidateCoupon checks coupon against the cart subtotal at the given time.
// A nil or inactive coupon is indistinguishable from an unknown code.
// Returns a *CouponRejection on failure.
func ValidateCoupon(coupon *domain.Coupon, subtotalCents int64, now time.Time) error {
	if coupon == nil || !coupon.Active {
		return &CouponRejection{Reason: ReasonNotFound, Message: "invalid coupon code"}
	}
	if coupon.ExpiresAt != nil && !now.Before(*coupon.ExpiresAt) {
		return &CouponRejection{Reason: ReasonExpired, Message: "this coupon has expired"}
	}
	if coupon.MaxUses != nil && coupon.UsedCount >= *coupon.MaxUses {
		return &CouponRejection{Reason: ReasonUsageLimitReached, Message: "this coupon has reached its usage limit"}
	}
	if coupon.MinOrderCents > 0 && subtotalCents < coupon.MinOrderCents {
		return &CouponRejection{
			Reason:  ReasonMinimumNotMet,
			Message: fmt.Sprintf("coupon requires a minimum order of %s", FormatCents(coupon.MinOrderCents)),
		}
	}
	return nil
}

// DiscountCents computes the discount coupon grants against subtotal.
// Percentage coupons round half away from zero; fixed coupons never exceed
// the subtotal, so the discounted amount cannot go negative.
func DiscountCents(coupon *domain.Coupon, subtotalCents int64) int64 {
	if coupon == nil {
		return 0
	}
	switch coupon.DiscountType {
	case domain.DiscountTypePercentage:
		return int64(math.Round(float64(subtotalCents) * float64(coupon.DiscountValue) / 100))
	case domain.DiscountTypeFixed:
		if coupon.DiscountValue > subtotalCents {
			return subtotalCents
		}
		return coupon.DiscountValue
	default:
		return 0
	}
}

// Compute produces a full price quote for the cart. The free shipping
// threshold compares against the raw subtotal, before any discount, and a
// zero threshold disables free shipping. Tax applies to the discounted
// subtotal and excludes shipping.
func Compute(lines []CartLine, coupon *domain.Coupon, cfg domain.ShippingConfig) domain.PriceQuote {
	subtotal := Subtotal(lines)
	discount := DiscountCents(coupon, subtotal)

	var shipping int64
	if len(lines) > 0 {
		shipping = cfg.BasePriceCents
		if cfg.FreeThresholdCents > 0 && subtotal >= cfg.FreeThresholdCents {
			shipping = 0
		}
	}

	taxBase := subtotal - discount
	tax := int64(math.Round(float64(taxBase) * cfg.TaxPercent / 100))

	return domain.PriceQuote{
		SubtotalCents: subtotal,
		DiscountCents: discount,
		ShippingCents: shipping,
		TaxCents:      tax,
		TotalCents:    taxBase + shipping + tax,
	}
}

// FormatCents renders a cent amount as a decimal string, e.g. 1500 -> "15.00".
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
