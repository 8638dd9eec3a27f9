package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type UnitKind string

const (
	UnitPiece UnitKind = "piece"
	UnitBox   UnitKind = "box"
	UnitKg    UnitKind = "kg"
	UnitLitre UnitKind = "litre"
	UnitGm    UnitKind = "gm"
	UnitMl    UnitKind = "ml"
)

// UnitKinds lists every unit tracked in an order's quantity summary.
var UnitKinds = []UnitKind{UnitPiece, UnitBox, UnitKg, UnitLitre, UnitGm, UnitMl}

var unitAliases = map[string]UnitKind{
	"piece": UnitPiece, "pieces": UnitPiece, "pc": UnitPiece, "pcs": UnitPiece, "nos": UnitPiece,
	"box": UnitBox, "boxes": UnitBox, "bx": UnitBox,
	"kg": UnitKg, "kgs": UnitKg, "kilo": UnitKg, "kilogram": UnitKg, "kilograms": UnitKg,
	"litre": UnitLitre, "litres": UnitLitre, "liter": UnitLitre, "liters": UnitLitre, "l": UnitLitre, "ltr": UnitLitre,
	"gm": UnitGm, "gms": UnitGm, "g": UnitGm, "gram": UnitGm, "grams": UnitGm,
	"ml": UnitMl, "mls": UnitMl, "millilitre": UnitMl, "milliliter": UnitMl,
}

// ParseUnitKind resolves a free-text unit, accepting common spellings.
func ParseUnitKind(s string) (UnitKind, bool) {
	u, ok := unitAliases[strings.ToLower(strings.TrimSpace(s))]
	return u, ok
}

func (u UnitKind) Valid() bool {
	switch u {
	case UnitPiece, UnitBox, UnitKg, UnitLitre, UnitGm, UnitMl:
		return true
	}
	return false
}

// PackSize is the quantity contained in one sellable unit of a product,
// e.g. 500 gm or 1 litre. It is parsed once when the product is written.
type PackSize struct {
	Value decimal.Decimal `json:"value" gorm:"type:decimal(20,4);not null;default:0"`
	Unit  UnitKind        `json:"unit" gorm:"size:16"`
}

var packSizePattern = regexp.MustCompile(`^\s*([0-9]+(?:\.[0-9]+)?)\s*([a-zA-Z]+)\s*$`)

// ParsePackSize parses strings such as "500 gm", "1kg" or "12 pcs".
func ParsePackSize(s string) (PackSize, error) {
	m := packSizePattern.FindStringSubmatch(s)
	if m == nil {
		return PackSize{}, fmt.Errorf("invalid pack size %q", s)
	}
	value, err := decimal.NewFromString(m[1])
	if err != nil {
		return PackSize{}, fmt.Errorf("invalid pack size %q: %w", s, err)
	}
	unit, ok := ParseUnitKind(m[2])
	if !ok {
		return PackSize{}, fmt.Errorf("invalid pack size %q: unknown unit %q", s, m[2])
	}
	if !value.IsPositive() {
		return PackSize{}, fmt.Errorf("invalid pack size %q: value must be positive", s)
	}
	return PackSize{Value: value, Unit: unit}.Normalize(), nil
}

var thousand = decimal.NewFromInt(1000)

// Normalize folds sub-units into their larger unit once they reach 1000
// (1000 gm becomes 1 kg, 1500 ml becomes 1.5 litre).
func (p PackSize) Normalize() PackSize {
	switch p.Unit {
	case UnitGm:
		if p.Value.GreaterThanOrEqual(thousand) {
			return PackSize{Value: p.Value.Div(thousand), Unit: UnitKg}
		}
	case UnitMl:
		if p.Value.GreaterThanOrEqual(thousand) {
			return PackSize{Value: p.Value.Div(thousand), Unit: UnitLitre}
		}
	}
	return p
}

func (p PackSize) IsZero() bool {
	return p.Unit == "" || p.Value.IsZero()
}

func (p PackSize) String() string {
	if p.IsZero() {
		return ""
	}
	return p.Value.String() + " " + string(p.Unit)
}

type Product struct {
	ID        uint            `json:"-" gorm:"primaryKey"`
	UserID    string          `json:"userId" gorm:"size:64;not null;uniqueIndex:idx_products_shop_product"`
	ProductID string          `json:"productId" gorm:"size:64;not null;uniqueIndex:idx_products_shop_product"`
	Name      string          `json:"name" gorm:"not null"`
	Quantity  decimal.Decimal `json:"quantity" gorm:"type:decimal(20,4);not null;default:0"`
	PackSize  PackSize        `json:"packSize" gorm:"embedded;embeddedPrefix:pack_"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}
