package models

type AccountMainType string

const (
	AccountMainTypeAsset     AccountMainType = "Asset"
	AccountMainTypeLiability AccountMainType = "Liability"
	AccountMainTypeEquity    AccountMainType = "Equity"
	AccountMainTypeIncome    AccountMainType = "Income"
	AccountMainTypeExpense   AccountMainType = "Expense"
)

// UnitKind says which units an account may carry. Weight accounts are the
// memo mirrors; they never hold cash.
type UnitKind string

const (
	UnitKindCash   UnitKind = "Cash"
	UnitKindWeight UnitKind = "Weight"
	UnitKindBoth   UnitKind = "Both"
)

func (u UnitKind) CarriesCash() bool {
	return u == UnitKindCash || u == UnitKindBoth
}

func (u UnitKind) CarriesWeight() bool {
	return u == UnitKindWeight || u == UnitKindBoth
}

type ReferenceType string

const (
	ReferenceTypeManualJournal ReferenceType = "JN"
	ReferenceTypeInvoice       ReferenceType = "IV"
	ReferenceTypeWeightClosing ReferenceType = "WC"
	ReferenceTypeParty         ReferenceType = "PY"
)

type PartyCategory string

const (
	PartyCategoryCustomer PartyCategory = "Customer"
	PartyCategorySupplier PartyCategory = "Supplier"
	PartyCategoryEmployee PartyCategory = "Employee"
)

type WeightClosingStatus string

const (
	WeightClosingStatusOpen            WeightClosingStatus = "Open"
	WeightClosingStatusPartiallyClosed WeightClosingStatus = "PartiallyClosed"
	WeightClosingStatusClosed          WeightClosingStatus = "Closed"
	WeightClosingStatusCancelled       WeightClosingStatus = "Cancelled"
)

// IsTerminal reports whether no further executions are accepted.
func (s WeightClosingStatus) IsTerminal() bool {
	return s == WeightClosingStatusClosed || s == WeightClosingStatusCancelled
}

type PriceSource string

const (
	PriceSourceMarket PriceSource = "Market"
	PriceSourceManual PriceSource = "Manual"
)

// SettlementMode selects how the price difference of a weight closing is
// realized: as cash against the variance account, or as weight.
type SettlementMode string

const (
	SettlementModeCash            SettlementMode = "Cash"
	SettlementModeWeightForWeight SettlementMode = "WeightForWeight"
)
