package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Karat is a gold purity grade. Weight amounts are always attributed to
// exactly one grade.
type Karat int

const (
	Karat18 Karat = 18
	Karat21 Karat = 21
	Karat22 Karat = 22
	Karat24 Karat = 24
)

// Karats lists the supported grades in ascending order.
var Karats = []Karat{Karat18, Karat21, Karat22, Karat24}

// DefaultMainKarat is the reference purity used when a business does not
// declare its own.
const DefaultMainKarat = Karat21

func (k Karat) Valid() bool {
	switch k {
	case Karat18, Karat21, Karat22, Karat24:
		return true
	}
	return false
}

func (k Karat) String() string {
	return fmt.Sprintf("%dk", int(k))
}

// NormalizeWeight converts a weight at the given karat into main-karat units:
// weight_main = weight * karat / mainKarat, rounded to the weight precision.
func NormalizeWeight(weight decimal.Decimal, karat Karat, mainKarat Karat) decimal.Decimal {
	return weight.
		Mul(decimal.NewFromInt(int64(karat))).
		Div(decimal.NewFromInt(int64(mainKarat))).
		Round(3)
}

// DenormalizeWeight converts a main-karat weight back to the given karat.
func DenormalizeWeight(mainWeight decimal.Decimal, karat Karat, mainKarat Karat) decimal.Decimal {
	return mainWeight.
		Mul(decimal.NewFromInt(int64(mainKarat))).
		Div(decimal.NewFromInt(int64(karat))).
		Round(3)
}
