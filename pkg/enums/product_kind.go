package enums

import "fmt"

// ProductKind distinguishes goods that ship from goods delivered digitally.
type ProductKind string

const (
	ProductKindPhysical ProductKind = "physical"
	ProductKindDigital  ProductKind = "digital"
)

// String implements fmt.Stringer.
func (p ProductKind) String() string {
	return string(p)
}

// IsValid reports whether the value is a known ProductKind.
func (p ProductKind) IsValid() bool {
	return p == ProductKindPhysical || p == ProductKindDigital
}

// RequiresShipping reports whether orders of this kind need a shipping address.
func (p ProductKind) RequiresShipping() bool {
	return p == ProductKindPhysical
}

// ParseProductKind converts raw input into a ProductKind.
func ParseProductKind(value string) (ProductKind, error) {
	switch ProductKind(value) {
	case ProductKindPhysical:
		return ProductKindPhysical, nil
	case ProductKindDigital:
		return ProductKindDigital, nil
	}
	return "", fmt.Errorf("invalid product kind %q", value)
}
