package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/asaalabbadi2-web/goldbooks_backend/config"
	"github.com/asaalabbadi2-web/goldbooks_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm/clause"
)

// WeightClosingOrder tracks one invoice's open weight obligation and its
// incremental settlement against a price. Weights are in main-karat units.
type WeightClosingOrder struct {
	ID              int                 `gorm:"primary_key" json:"id"`
	BusinessId      string              `gorm:"size:64;index;not null" json:"business_id"`
	InvoiceId       int                 `gorm:"index;not null" json:"invoice_id" binding:"required"`
	PartyId         int                 `gorm:"index;not null" json:"party_id" binding:"required"`
	MainKarat       Karat               `gorm:"not null;default:21" json:"main_karat"`
	SettlementMode  SettlementMode      `gorm:"type:enum('Cash', 'WeightForWeight');default:'Cash';size:20;not null" json:"settlement_mode"`
	TotalWeight     decimal.Decimal     `gorm:"type:decimal(20,3);default:0" json:"total_weight"`
	ExecutedWeight  decimal.Decimal     `gorm:"type:decimal(20,3);default:0" json:"executed_weight"`
	RemainingWeight decimal.Decimal     `gorm:"type:decimal(20,3);default:0" json:"remaining_weight"`
	SnapshotPrice   decimal.Decimal     `gorm:"type:decimal(20,4);default:0" json:"snapshot_price"`
	Status          WeightClosingStatus `gorm:"type:enum('Open', 'PartiallyClosed', 'Closed', 'Cancelled');default:'Open';index;size:20;not null" json:"status"`

	Executions []WeightClosingExecution `gorm:"foreignKey:OrderId" json:"executions"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// WeightClosingExecution records one fill and the variance it realized. The
// journal entry it references is owned by the ledger, not by settlement.
type WeightClosingExecution struct {
	ID               int             `gorm:"primary_key" json:"id"`
	BusinessId       string          `gorm:"size:64;index;not null" json:"business_id"`
	OrderId          int             `gorm:"index;not null" json:"order_id"`
	Weight           decimal.Decimal `gorm:"type:decimal(20,3);default:0" json:"weight"`
	PricePerGram     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"price_per_gram"`
	PriceSource      PriceSource     `gorm:"type:enum('Market', 'Manual');default:'Manual';size:10;not null" json:"price_source"`
	DifferenceValue  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"difference_value"`
	DifferenceWeight decimal.Decimal `gorm:"type:decimal(20,3);default:0" json:"difference_weight"`
	JournalEntryId   int             `gorm:"index" json:"journal_entry_id"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type NewWeightClosingOrder struct {
	InvoiceId      int             `json:"invoice_id" binding:"required"`
	PartyId        int             `json:"party_id" binding:"required"`
	TotalWeight    decimal.Decimal `json:"total_weight" binding:"required"`
	MainKarat      Karat           `json:"main_karat"`
	SnapshotPrice  decimal.Decimal `json:"snapshot_price" binding:"required"`
	SettlementMode SettlementMode  `json:"settlement_mode"`
}

func (o *WeightClosingOrder) GetId() int {
	return o.ID
}

// validateExecution gates a fill: terminal orders reject everything, and a
// fill may not exceed the remaining weight (beyond tolerance).
func (o *WeightClosingOrder) validateExecution(weight decimal.Decimal) error {
	if o.Status.IsTerminal() {
		return &utils.CapacityError{
			Scope:  "weight closing order",
			Detail: fmt.Sprintf("order %d is %s and accepts no further executions", o.ID, o.Status),
		}
	}
	if !weight.IsPositive() {
		return errors.New("execution weight must be positive")
	}
	if weight.GreaterThan(o.RemainingWeight.Add(WeightTolerance)) {
		return &utils.CapacityError{
			Scope:  "weight closing order",
			Detail: fmt.Sprintf("execution weight %s exceeds remaining %s", weight.String(), o.RemainingWeight.String()),
		}
	}
	return nil
}

// applyExecution advances the order state. A residue below the weight
// tolerance snaps remaining to exactly zero so dust positions never linger.
func (o *WeightClosingOrder) applyExecution(weight decimal.Decimal) {
	o.ExecutedWeight = o.ExecutedWeight.Add(weight)
	o.RemainingWeight = o.RemainingWeight.Sub(weight)

	if o.RemainingWeight.Abs().LessThanOrEqual(WeightTolerance) {
		o.RemainingWeight = decimal.Zero
		o.ExecutedWeight = o.TotalWeight
		o.Status = WeightClosingStatusClosed
		return
	}
	o.Status = WeightClosingStatusPartiallyClosed
}

// executionDifference computes the realized variance of a fill versus the
// order's snapshot valuation. In cash mode the difference is money; in
// weight-for-weight mode it is expressed as weight at the execution price.
func executionDifference(snapshotPrice, price, weight decimal.Decimal, mode SettlementMode) (diffValue, diffWeight decimal.Decimal) {
	diff := price.Sub(snapshotPrice).Mul(weight)
	if mode == SettlementModeWeightForWeight && price.IsPositive() {
		return decimal.Zero, diff.Div(price).Round(3)
	}
	return diff.Round(2), decimal.Zero
}

func OpenWeightClosingOrder(ctx context.Context, input *NewWeightClosingOrder) (*WeightClosingOrder, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if input.InvoiceId <= 0 {
		return nil, errors.New("invoice id is required")
	}
	if !input.TotalWeight.IsPositive() {
		return nil, errors.New("total weight must be positive")
	}
	if !input.SnapshotPrice.IsPositive() {
		return nil, errors.New("snapshot price must be positive")
	}
	if err := utils.ValidateResourceId[Party](ctx, businessId, input.PartyId); err != nil {
		return nil, errors.New("party not found")
	}

	mainKarat := input.MainKarat
	if mainKarat == 0 {
		var err error
		mainKarat, err = GetMainKarat(ctx)
		if err != nil {
			return nil, err
		}
	}
	if !mainKarat.Valid() {
		return nil, errors.New("invalid main karat")
	}
	mode := input.SettlementMode
	if mode == "" {
		mode = SettlementModeCash
	}

	order := WeightClosingOrder{
		BusinessId:      businessId,
		InvoiceId:       input.InvoiceId,
		PartyId:         input.PartyId,
		MainKarat:       mainKarat,
		SettlementMode:  mode,
		TotalWeight:     input.TotalWeight,
		ExecutedWeight:  decimal.Zero,
		RemainingWeight: input.TotalWeight,
		SnapshotPrice:   input.SnapshotPrice,
		Status:          WeightClosingStatusOpen,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// weightLine builds a weight-only amount pair at the given karat.
func weightLine(accountId int, partyId int, k Karat, debit, credit decimal.Decimal, description string) NewJournalEntryLine {
	line := NewJournalEntryLine{AccountId: accountId, PartyId: partyId, Description: description}
	switch k {
	case Karat18:
		line.Debit18, line.Credit18 = debit, credit
	case Karat21:
		line.Debit21, line.Credit21 = debit, credit
	case Karat22:
		line.Debit22, line.Credit22 = debit, credit
	case Karat24:
		line.Debit24, line.Credit24 = debit, credit
	}
	return line
}

// ExecuteWeightClosing fills an order: posts the variance journal (cash
// against the variance account, weight relief on the memo mirrors) and
// advances the order, all in one transaction. The order row is locked with
// SELECT ... FOR UPDATE so concurrent fills validate against each other's
// committed state instead of a stale snapshot.
func ExecuteWeightClosing(ctx context.Context, orderId int, weight decimal.Decimal, pricePerGram decimal.Decimal, source PriceSource) (*WeightClosingExecution, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if !pricePerGram.IsPositive() {
		return nil, errors.New("price per gram must be positive")
	}

	db := config.GetDB()
	tx := db.Begin()

	var order WeightClosingOrder
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ?", businessId).
		First(&order, orderId).Error; err != nil {
		tx.Rollback()
		return nil, utils.ErrorRecordNotFound
	}
	if err := order.validateExecution(weight); err != nil {
		tx.Rollback()
		return nil, err
	}

	party, err := utils.FetchModel[Party](ctx, businessId, order.PartyId)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if party.AccountId == 0 || party.MemoAccountId == 0 {
		tx.Rollback()
		return nil, errors.New("party accounts are not provisioned")
	}

	sysAccounts, err := GetSystemAccounts(businessId)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	varianceId := sysAccounts[AccountCodeGoldPriceVariance]
	if varianceId == 0 {
		tx.Rollback()
		return nil, &utils.IntegrityError{Code: AccountCodeGoldPriceVariance, Reason: "gold price variance account is missing"}
	}
	variance, err := utils.FetchModel[Account](ctx, businessId, varianceId)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if variance.MirrorAccountId == 0 {
		tx.Rollback()
		return nil, &utils.IntegrityError{Code: variance.Code, Reason: "variance account has no weight memo mirror"}
	}

	diffValue, diffWeight := executionDifference(order.SnapshotPrice, pricePerGram, weight, order.SettlementMode)

	desc := fmt.Sprintf("Weight closing %s @ %s (order %d, invoice %d)",
		weight.String(), pricePerGram.String(), order.ID, order.InvoiceId)

	lines := make([]NewJournalEntryLine, 0, 4)
	// weight relief on the memo pair at the order's main karat
	lines = append(lines,
		weightLine(party.MemoAccountId, party.ID, order.MainKarat, decimal.Zero, weight, desc),
		weightLine(variance.MirrorAccountId, 0, order.MainKarat, weight, decimal.Zero, desc),
	)
	// realized price difference
	if !diffValue.IsZero() {
		if diffValue.IsPositive() {
			lines = append(lines,
				NewJournalEntryLine{AccountId: party.AccountId, PartyId: party.ID, Description: desc, Debit: diffValue},
				NewJournalEntryLine{AccountId: variance.ID, Description: desc, Credit: diffValue},
			)
		} else {
			lines = append(lines,
				NewJournalEntryLine{AccountId: variance.ID, Description: desc, Debit: diffValue.Neg()},
				NewJournalEntryLine{AccountId: party.AccountId, PartyId: party.ID, Description: desc, Credit: diffValue.Neg()},
			)
		}
	}
	if !diffWeight.IsZero() {
		if diffWeight.IsPositive() {
			lines = append(lines,
				weightLine(party.MemoAccountId, party.ID, order.MainKarat, diffWeight, decimal.Zero, desc),
				weightLine(variance.MirrorAccountId, 0, order.MainKarat, decimal.Zero, diffWeight, desc),
			)
		} else {
			lines = append(lines,
				weightLine(party.MemoAccountId, party.ID, order.MainKarat, decimal.Zero, diffWeight.Neg(), desc),
				weightLine(variance.MirrorAccountId, 0, order.MainKarat, diffWeight.Neg(), decimal.Zero, desc),
			)
		}
	}

	entry, err := postJournalEntryTx(ctx, tx, businessId, &NewJournalEntry{
		EntryDate:     time.Now().UTC(),
		Description:   desc,
		ReferenceType: ReferenceTypeWeightClosing,
		ReferenceId:   order.ID,
		PartyId:       party.ID,
		Lines:         lines,
	})
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	order.applyExecution(weight)
	if err := tx.WithContext(ctx).Model(&WeightClosingOrder{}).
		Where("id = ?", order.ID).
		Updates(map[string]interface{}{
			"ExecutedWeight":  order.ExecutedWeight,
			"RemainingWeight": order.RemainingWeight,
			"Status":          order.Status,
		}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	execution := WeightClosingExecution{
		BusinessId:       businessId,
		OrderId:          order.ID,
		Weight:           weight,
		PricePerGram:     pricePerGram,
		PriceSource:      source,
		DifferenceValue:  diffValue,
		DifferenceWeight: diffWeight,
		JournalEntryId:   entry.ID,
	}
	if err := tx.WithContext(ctx).Create(&execution).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &execution, nil
}

// CancelWeightClosingOrder moves a non-terminal order to Cancelled. Cancelled
// orders keep their execution history; only the open remainder dies.
func CancelWeightClosingOrder(ctx context.Context, orderId int) (*WeightClosingOrder, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	order, err := utils.FetchModel[WeightClosingOrder](ctx, businessId, orderId)
	if err != nil {
		return nil, err
	}
	if order.Status.IsTerminal() {
		return nil, &utils.CapacityError{
			Scope:  "weight closing order",
			Detail: fmt.Sprintf("order %d is already %s", order.ID, order.Status),
		}
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&WeightClosingOrder{}).
		Where("id = ?", order.ID).
		Update("status", WeightClosingStatusCancelled).Error; err != nil {
		return nil, err
	}
	order.Status = WeightClosingStatusCancelled
	return order, nil
}

func GetWeightClosingOrder(ctx context.Context, id int) (*WeightClosingOrder, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[WeightClosingOrder](ctx, businessId, id, "Executions")
}

// GetOpenWeightClosingOrders lists the orders the settlement runner should
// fill for the ctx business.
func GetOpenWeightClosingOrders(ctx context.Context) ([]*WeightClosingOrder, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var results []*WeightClosingOrder
	if err := db.WithContext(ctx).
		Where("business_id = ? AND status IN ?", businessId,
			[]WeightClosingStatus{WeightClosingStatusOpen, WeightClosingStatusPartiallyClosed}).
		Order("id").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// ListBusinessIdsWithOpenOrders feeds the cross-tenant settlement sweep.
func ListBusinessIdsWithOpenOrders(ctx context.Context) ([]string, error) {
	db := config.GetDB()
	var ids []string
	if err := db.WithContext(ctx).Model(&WeightClosingOrder{}).
		Distinct("business_id").
		Where("status IN ?", []WeightClosingStatus{WeightClosingStatusOpen, WeightClosingStatusPartiallyClosed}).
		Pluck("business_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
