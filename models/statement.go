package models

import (
	"context"
	"errors"
	"time"

	"github.com/asaalabbadi2-web/goldbooks_backend/config"
	"github.com/asaalabbadi2-web/goldbooks_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StatementLine is one ledger line with running balances per unit.
type StatementLine struct {
	JournalEntryId int             `json:"journal_entry_id"`
	EntryNumber    string          `json:"entry_number"`
	EntryDate      time.Time       `json:"entry_date"`
	Description    string          `json:"description"`
	Debit          decimal.Decimal `json:"debit"`
	Credit         decimal.Decimal `json:"credit"`
	RunningBalance decimal.Decimal `json:"running_balance"`

	WeightDebits          map[Karat]decimal.Decimal `json:"weight_debits"`
	WeightCredits         map[Karat]decimal.Decimal `json:"weight_credits"`
	RunningWeightBalances map[Karat]decimal.Decimal `json:"running_weight_balances"`
}

// BalanceSnapshot is the current cash + per-karat position of an account or
// party, computed from non-deleted journal lines.
type BalanceSnapshot struct {
	Cash    decimal.Decimal           `json:"cash"`
	Weights map[Karat]decimal.Decimal `json:"weights"`
	// MainKaratWeight is the per-karat total normalized to the business's
	// reference purity.
	MainKaratWeight decimal.Decimal `json:"main_karat_weight"`
}

type statementRow struct {
	JournalEntryLine
	EntryNumber string
	EntryDate   time.Time
	EntryDesc   string
}

func statementQuery(ctx context.Context, tx *gorm.DB, businessId string) *gorm.DB {
	return tx.WithContext(ctx).
		Table("journal_entry_lines").
		Select("journal_entry_lines.*, journal_entries.entry_number AS entry_number, journal_entries.entry_date AS entry_date, journal_entries.description AS entry_desc").
		Joins("JOIN journal_entries ON journal_entries.id = journal_entry_lines.journal_entry_id").
		Where("journal_entries.business_id = ? AND journal_entries.is_deleted = ?", businessId, false)
}

// GetAccountStatement returns the ordered ledger lines of one account with
// running balances for cash and each karat grade. Lines before fromDate feed
// the opening balance.
func GetAccountStatement(ctx context.Context, accountId int, fromDate time.Time, toDate time.Time) ([]*StatementLine, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if err := utils.ValidateResourceId[Account](ctx, businessId, accountId); err != nil {
		return nil, err
	}

	db := config.GetDB()
	var rows []statementRow
	if err := statementQuery(ctx, db, businessId).
		Where("journal_entry_lines.account_id = ?", accountId).
		Where("journal_entries.entry_date <= ?", toDate).
		Order("journal_entries.entry_date, journal_entry_lines.id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	cash := decimal.Zero
	weights := make(map[Karat]decimal.Decimal, len(Karats))
	for _, k := range Karats {
		weights[k] = decimal.Zero
	}

	statement := make([]*StatementLine, 0, len(rows))
	for i := range rows {
		row := &rows[i]
		cash = cash.Add(row.Debit).Sub(row.Credit)
		for _, k := range Karats {
			weights[k] = weights[k].Add(row.WeightDebit(k)).Sub(row.WeightCredit(k))
		}
		if row.EntryDate.Before(fromDate) {
			continue
		}

		line := &StatementLine{
			JournalEntryId: row.JournalEntryId,
			EntryNumber:    row.EntryNumber,
			EntryDate:      row.EntryDate,
			Description:    row.Description,
			Debit:          row.Debit,
			Credit:         row.Credit,
			RunningBalance: cash,

			WeightDebits:          make(map[Karat]decimal.Decimal, len(Karats)),
			WeightCredits:         make(map[Karat]decimal.Decimal, len(Karats)),
			RunningWeightBalances: make(map[Karat]decimal.Decimal, len(Karats)),
		}
		for _, k := range Karats {
			line.WeightDebits[k] = row.WeightDebit(k)
			line.WeightCredits[k] = row.WeightCredit(k)
			line.RunningWeightBalances[k] = weights[k]
		}
		statement = append(statement, line)
	}
	return statement, nil
}

func snapshotFromRows(ctx context.Context, rows []JournalEntryLine, mainKarat Karat) *BalanceSnapshot {
	snapshot := &BalanceSnapshot{
		Cash:    decimal.Zero,
		Weights: make(map[Karat]decimal.Decimal, len(Karats)),
	}
	for _, k := range Karats {
		snapshot.Weights[k] = decimal.Zero
	}
	for i := range rows {
		row := &rows[i]
		snapshot.Cash = snapshot.Cash.Add(row.Debit).Sub(row.Credit)
		for _, k := range Karats {
			snapshot.Weights[k] = snapshot.Weights[k].Add(row.WeightDebit(k)).Sub(row.WeightCredit(k))
		}
	}
	total := decimal.Zero
	for _, k := range Karats {
		total = total.Add(NormalizeWeight(snapshot.Weights[k], k, mainKarat))
	}
	snapshot.MainKaratWeight = total
	return snapshot
}

// GetAccountBalanceSnapshot aggregates the current cash + per-karat position
// of one account from its non-deleted lines.
func GetAccountBalanceSnapshot(ctx context.Context, accountId int) (*BalanceSnapshot, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if err := utils.ValidateResourceId[Account](ctx, businessId, accountId); err != nil {
		return nil, err
	}
	mainKarat, err := GetMainKarat(ctx)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	var rows []JournalEntryLine
	if err := statementQuery(ctx, db, businessId).
		Where("journal_entry_lines.account_id = ?", accountId).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return snapshotFromRows(ctx, rows, mainKarat), nil
}

// GetPartyBalanceSnapshot aggregates a party's position across both sides of
// its mirrored pair: cash from the financial account, weight from the memo.
func GetPartyBalanceSnapshot(ctx context.Context, partyId int) (*BalanceSnapshot, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	party, err := utils.FetchModel[Party](ctx, businessId, partyId)
	if err != nil {
		return nil, err
	}
	mainKarat, err := GetMainKarat(ctx)
	if err != nil {
		return nil, err
	}

	accountIds := make([]int, 0, 2)
	if party.AccountId > 0 {
		accountIds = append(accountIds, party.AccountId)
	}
	if party.MemoAccountId > 0 {
		accountIds = append(accountIds, party.MemoAccountId)
	}
	if len(accountIds) == 0 {
		return snapshotFromRows(ctx, nil, mainKarat), nil
	}

	db := config.GetDB()
	var rows []JournalEntryLine
	if err := statementQuery(ctx, db, businessId).
		Where("journal_entry_lines.account_id IN ?", accountIds).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return snapshotFromRows(ctx, rows, mainKarat), nil
}
