package enums

import "fmt"

// CouponKind distinguishes flat-amount coupons from percentage coupons.
type CouponKind string

const (
	CouponKindFlat    CouponKind = "flat"
	CouponKindPercent CouponKind = "percent"
)

// String implements fmt.Stringer.
func (c CouponKind) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CouponKind.
func (c CouponKind) IsValid() bool {
	return c == CouponKindFlat || c == CouponKindPercent
}

// ParseCouponKind converts raw input into a CouponKind.
func ParseCouponKind(value string) (CouponKind, error) {
	switch CouponKind(value) {
	case CouponKindFlat:
		return CouponKindFlat, nil
	case CouponKindPercent:
		return CouponKindPercent, nil
	}
	return "", fmt.Errorf("invalid coupon kind %q", value)
}
