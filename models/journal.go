package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/asaalabbadi2-web/goldbooks_backend/config"
	"github.com/asaalabbadi2-web/goldbooks_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Balance tolerances per unit. An entry is accepted when |debits - credits|
// stays inside these for cash and for every karat grade independently.
var (
	CashTolerance   = decimal.NewFromFloat(0.01)
	WeightTolerance = decimal.NewFromFloat(0.001)
)

// JournalEntry is an append-only posting. Once posted it is immutable except
// for the soft-delete / restore record; balances and statements exclude
// soft-deleted entries.
type JournalEntry struct {
	ID            int           `gorm:"primary_key" json:"id"`
	BusinessId    string        `gorm:"size:64;not null;index;index:idx_entry_business_year,priority:1;uniqueIndex:idx_entry_business_number,priority:1" json:"business_id"`
	EntryNumber   string        `gorm:"size:30;not null;uniqueIndex:idx_entry_business_number,priority:2" json:"entry_number"`
	SequenceNo    int64         `gorm:"not null;default:0" json:"sequence_no"`
	EntryYear     int           `gorm:"not null;index:idx_entry_business_year,priority:2" json:"entry_year"`
	EntryDate     time.Time     `gorm:"index;not null" json:"entry_date" binding:"required"`
	Description   string        `gorm:"type:text" json:"description"`
	ReferenceType ReferenceType `gorm:"type:enum('JN', 'IV', 'WC', 'PY');default:'JN';index" json:"reference_type"`
	ReferenceId   int           `gorm:"index" json:"reference_id"`
	PartyId       int           `gorm:"index" json:"party_id"`
	CreatedBy     int           `json:"created_by"`
	CreatedByName string        `gorm:"size:100" json:"created_by_name"`

	Lines []JournalEntryLine `gorm:"foreignKey:JournalEntryId" json:"lines"`

	// deletion record: all four deletion fields are written together
	IsDeleted     bool       `gorm:"not null;default:false;index" json:"is_deleted"`
	DeletedBy     string     `gorm:"size:100" json:"deleted_by"`
	DeletedReason string     `gorm:"type:text" json:"deleted_reason"`
	DeletedAt     *time.Time `json:"deleted_at"`
	RestoredBy    string     `gorm:"size:100" json:"restored_by"`
	RestoredAt    *time.Time `json:"restored_at"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// JournalEntryLine posts one currency pair and one pair per karat grade
// against exactly one account.
type JournalEntryLine struct {
	ID             int    `gorm:"primary_key" json:"id"`
	BusinessId     string `gorm:"size:64;index;not null" json:"business_id"`
	JournalEntryId int    `gorm:"index;not null" json:"journal_entry_id"`
	AccountId      int    `gorm:"index;not null" json:"account_id" binding:"required"`
	PartyId        int    `gorm:"index" json:"party_id"`
	Description    string `gorm:"size:255" json:"description"`

	Debit  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"debit"`
	Credit decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"credit"`

	Debit18  decimal.Decimal `gorm:"type:decimal(20,3);default:0" json:"debit18"`
	Credit18 decimal.Decimal `gorm:"type:decimal(20,3);default:0" json:"credit18"`
	Debit21  decimal.Decimal `gorm:"type:decimal(20,3);default:0" json:"debit21"`
	Credit21 decimal.Decimal `gorm:"type:decimal(20,3);default:0" json:"credit21"`
	Debit22  decimal.Decimal `gorm:"type:decimal(20,3);default:0" json:"debit22"`
	Credit22 decimal.Decimal `gorm:"type:decimal(20,3);default:0" json:"credit22"`
	Debit24  decimal.Decimal `gorm:"type:decimal(20,3);default:0" json:"debit24"`
	Credit24 decimal.Decimal `gorm:"type:decimal(20,3);default:0" json:"credit24"`
}

type NewJournalEntry struct {
	EntryDate     time.Time             `json:"entry_date" binding:"required"`
	Description   string                `json:"description"`
	ReferenceType ReferenceType         `json:"reference_type"`
	ReferenceId   int                   `json:"reference_id"`
	PartyId       int                   `json:"party_id"`
	Lines         []NewJournalEntryLine `json:"lines"`
}

type NewJournalEntryLine struct {
	AccountId   int    `json:"account_id" binding:"required"`
	PartyId     int    `json:"party_id"`
	Description string `json:"description"`

	Debit  decimal.Decimal `json:"debit"`
	Credit decimal.Decimal `json:"credit"`

	Debit18  decimal.Decimal `json:"debit18"`
	Credit18 decimal.Decimal `json:"credit18"`
	Debit21  decimal.Decimal `json:"debit21"`
	Credit21 decimal.Decimal `json:"credit21"`
	Debit22  decimal.Decimal `json:"debit22"`
	Credit22 decimal.Decimal `json:"credit22"`
	Debit24  decimal.Decimal `json:"debit24"`
	Credit24 decimal.Decimal `json:"credit24"`
}

func (j *JournalEntry) GetId() int {
	return j.ID
}

func (l *JournalEntryLine) WeightDebit(k Karat) decimal.Decimal {
	switch k {
	case Karat18:
		return l.Debit18
	case Karat21:
		return l.Debit21
	case Karat22:
		return l.Debit22
	case Karat24:
		return l.Debit24
	}
	return decimal.Zero
}

func (l *JournalEntryLine) WeightCredit(k Karat) decimal.Decimal {
	switch k {
	case Karat18:
		return l.Credit18
	case Karat21:
		return l.Credit21
	case Karat22:
		return l.Credit22
	case Karat24:
		return l.Credit24
	}
	return decimal.Zero
}

func (l *NewJournalEntryLine) weightDebit(k Karat) decimal.Decimal {
	switch k {
	case Karat18:
		return l.Debit18
	case Karat21:
		return l.Debit21
	case Karat22:
		return l.Debit22
	case Karat24:
		return l.Debit24
	}
	return decimal.Zero
}

func (l *NewJournalEntryLine) weightCredit(k Karat) decimal.Decimal {
	switch k {
	case Karat18:
		return l.Credit18
	case Karat21:
		return l.Credit21
	case Karat22:
		return l.Credit22
	case Karat24:
		return l.Credit24
	}
	return decimal.Zero
}

func (l *NewJournalEntryLine) hasCash() bool {
	return !l.Debit.IsZero() || !l.Credit.IsZero()
}

func (l *NewJournalEntryLine) hasWeight() bool {
	for _, k := range Karats {
		if !l.weightDebit(k).IsZero() || !l.weightCredit(k).IsZero() {
			return true
		}
	}
	return false
}

// validateEntryBalance checks the entry-level invariant: cash debits equal
// cash credits, and debits equal credits for each karat grade independently.
// A grade with no activity on any line trivially balances.
func validateEntryBalance(lines []NewJournalEntryLine) error {
	cashDelta := decimal.Zero
	for i := range lines {
		cashDelta = cashDelta.Add(lines[i].Debit).Sub(lines[i].Credit)
	}
	if cashDelta.Abs().GreaterThan(CashTolerance) {
		return &utils.BalanceError{Unit: "cash", Delta: cashDelta}
	}

	for _, k := range Karats {
		delta := decimal.Zero
		for i := range lines {
			delta = delta.Add(lines[i].weightDebit(k)).Sub(lines[i].weightCredit(k))
		}
		if delta.Abs().GreaterThan(WeightTolerance) {
			return &utils.BalanceError{Unit: "weight-" + k.String(), Delta: delta}
		}
	}
	return nil
}

func entryNumber(year int, seq int64) string {
	return fmt.Sprintf("JE-%d-%05d", year, seq)
}

// fallbackEntryNumber is collision-safe by construction; issued only when the
// sequence could not be computed, so posting never double-issues a number.
func fallbackEntryNumber(year int) string {
	return fmt.Sprintf("JE-%d-X%s", year, strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func receiveJournalEntryLines(businessId string, input *NewJournalEntry) ([]JournalEntryLine, error) {
	lines := make([]JournalEntryLine, 0, len(input.Lines))
	for i := range input.Lines {
		in := &input.Lines[i]
		if !in.hasCash() && !in.hasWeight() {
			return nil, errors.New("journal line must carry a cash or weight amount")
		}
		lines = append(lines, JournalEntryLine{
			BusinessId:  businessId,
			AccountId:   in.AccountId,
			PartyId:     in.PartyId,
			Description: in.Description,
			Debit:       in.Debit,
			Credit:      in.Credit,
			Debit18:     in.Debit18,
			Credit18:    in.Credit18,
			Debit21:     in.Debit21,
			Credit21:    in.Credit21,
			Debit22:     in.Debit22,
			Credit22:    in.Credit22,
			Debit24:     in.Debit24,
			Credit24:    in.Credit24,
		})
	}
	return lines, nil
}

// PostJournalEntry is the single write path for financial history. All-or-
// nothing: the entry, its lines and the account balance updates commit in one
// transaction under the per-business posting lock.
func PostJournalEntry(ctx context.Context, input *NewJournalEntry) (*JournalEntry, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	tx := db.Begin()
	entry, err := postJournalEntryTx(ctx, tx, businessId, input)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return entry, nil
}

// postJournalEntryTx posts inside the caller's transaction. The weight
// closing settlement uses it to keep the order mutation and the variance
// journal atomic.
func postJournalEntryTx(ctx context.Context, tx *gorm.DB, businessId string, input *NewJournalEntry) (*JournalEntry, error) {
	if len(input.Lines) == 0 {
		return nil, errors.New("journal entry has no lines")
	}
	if err := validateEntryBalance(input.Lines); err != nil {
		return nil, err
	}
	lines, err := receiveJournalEntryLines(businessId, input)
	if err != nil {
		return nil, err
	}

	if err := AcquirePostingLock(tx, businessId); err != nil {
		return nil, err
	}
	defer ReleasePostingLock(tx, businessId)

	// resolve and check every posted account inside the tx
	for i := range input.Lines {
		in := &input.Lines[i]
		var account Account
		if err := tx.WithContext(ctx).
			Where("business_id = ?", businessId).
			First(&account, in.AccountId).Error; err != nil {
			return nil, utils.ErrorRecordNotFound
		}
		if in.hasCash() && !account.UnitKind.CarriesCash() {
			return nil, fmt.Errorf("account %s is weight-only and cannot carry cash amounts", account.Code)
		}
		if in.hasWeight() && !account.UnitKind.CarriesWeight() {
			return nil, fmt.Errorf("account %s is cash-only and cannot carry weight amounts", account.Code)
		}
	}

	refType := input.ReferenceType
	if refType == "" {
		refType = ReferenceTypeManualJournal
	}
	userId, _ := utils.GetUserIdFromContext(ctx)
	userName, _ := utils.GetUserNameFromContext(ctx)

	year := input.EntryDate.Year()
	var entry JournalEntry
	// The advisory lock is released when this function returns, before the
	// caller commits; a competitor can read a DB sequence max that excludes
	// this still-uncommitted entry. The unique (business_id, entry_number)
	// index catches that, so re-issue the number and insert again.
	for attempt := 0; ; attempt++ {
		entry = JournalEntry{
			BusinessId:    businessId,
			EntryYear:     year,
			EntryDate:     input.EntryDate,
			Description:   input.Description,
			ReferenceType: refType,
			ReferenceId:   input.ReferenceId,
			PartyId:       input.PartyId,
			CreatedBy:     userId,
			CreatedByName: userName,
			Lines:         lines,
		}

		seqNo, err := utils.GetYearSequence[JournalEntry](ctx, businessId, year)
		if err != nil {
			// still guarantee uniqueness; surface the anomaly instead of
			// double-issuing a number
			entry.EntryNumber = fallbackEntryNumber(year)
			config.LogError(config.GetLogger(), "journal.go", "postJournalEntryTx",
				"sequence generation failed, issued fallback entry number", entry.EntryNumber, err)
		} else {
			entry.SequenceNo = seqNo
			entry.EntryNumber = entryNumber(year, seqNo)
		}

		err = tx.WithContext(ctx).Create(&entry).Error
		if err == nil {
			break
		}
		if attempt < 2 && isDuplicateKeyError(err) {
			continue
		}
		return nil, err
	}

	for i := range entry.Lines {
		if err := applyLineBalancesTx(ctx, tx, &entry.Lines[i], 1); err != nil {
			return nil, err
		}
	}
	return &entry, nil
}

// applyLineBalancesTx moves a line's amounts into the account's running
// balance columns. sign -1 unapplies (soft delete).
func applyLineBalancesTx(ctx context.Context, tx *gorm.DB, line *JournalEntryLine, sign int) error {
	updates := map[string]interface{}{}

	net := line.Debit.Sub(line.Credit)
	if sign < 0 {
		net = net.Neg()
	}
	if !net.IsZero() {
		updates["balance"] = gorm.Expr("balance + ?", net)
	}

	weightColumns := map[Karat]string{
		Karat18: "balance18",
		Karat21: "balance21",
		Karat22: "balance22",
		Karat24: "balance24",
	}
	for _, k := range Karats {
		netW := line.WeightDebit(k).Sub(line.WeightCredit(k))
		if sign < 0 {
			netW = netW.Neg()
		}
		if !netW.IsZero() {
			col := weightColumns[k]
			updates[col] = gorm.Expr(col+" + ?", netW)
		}
	}

	if len(updates) == 0 {
		return nil
	}
	return tx.WithContext(ctx).Model(&Account{}).
		Where("id = ?", line.AccountId).
		Updates(updates).Error
}

// SoftDeleteJournalEntry marks an entry (and its lines) as excluded from
// balances and reports without physically removing anything, recording actor,
// reason and timestamp together.
func SoftDeleteJournalEntry(ctx context.Context, id int, reason string) (*JournalEntry, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if strings.TrimSpace(reason) == "" {
		return nil, errors.New("deletion reason is required")
	}
	actor, _ := utils.GetUserNameFromContext(ctx)
	if actor == "" {
		actor = "System"
	}

	entry, err := utils.FetchModel[JournalEntry](ctx, businessId, id, "Lines")
	if err != nil {
		return nil, err
	}
	if entry.IsDeleted {
		return nil, errors.New("journal entry is already deleted")
	}

	db := config.GetDB()
	tx := db.Begin()
	if err := AcquirePostingLock(tx, businessId); err != nil {
		tx.Rollback()
		return nil, err
	}
	defer ReleasePostingLock(tx, businessId)

	now := time.Now().UTC()
	if err := tx.WithContext(ctx).Model(entry).Updates(map[string]interface{}{
		"IsDeleted":     true,
		"DeletedBy":     actor,
		"DeletedReason": reason,
		"DeletedAt":     now,
		"RestoredBy":    "",
		"RestoredAt":    nil,
	}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	for i := range entry.Lines {
		if err := applyLineBalancesTx(ctx, tx, &entry.Lines[i], -1); err != nil {
			tx.Rollback()
			return nil, err
		}
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return entry, nil
}

// RestoreJournalEntry reverses a soft delete, recording actor and timestamp.
func RestoreJournalEntry(ctx context.Context, id int) (*JournalEntry, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	actor, _ := utils.GetUserNameFromContext(ctx)
	if actor == "" {
		actor = "System"
	}

	entry, err := utils.FetchModel[JournalEntry](ctx, businessId, id, "Lines")
	if err != nil {
		return nil, err
	}
	if !entry.IsDeleted {
		return nil, errors.New("journal entry is not deleted")
	}

	db := config.GetDB()
	tx := db.Begin()
	if err := AcquirePostingLock(tx, businessId); err != nil {
		tx.Rollback()
		return nil, err
	}
	defer ReleasePostingLock(tx, businessId)

	now := time.Now().UTC()
	if err := tx.WithContext(ctx).Model(entry).Updates(map[string]interface{}{
		"IsDeleted":  false,
		"RestoredBy": actor,
		"RestoredAt": now,
	}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	for i := range entry.Lines {
		if err := applyLineBalancesTx(ctx, tx, &entry.Lines[i], 1); err != nil {
			tx.Rollback()
			return nil, err
		}
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return entry, nil
}

func GetJournalEntry(ctx context.Context, id int) (*JournalEntry, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[JournalEntry](ctx, businessId, id, "Lines")
}

func GetJournalEntries(ctx context.Context, fromDate *time.Time, toDate *time.Time, referenceType *ReferenceType, includeDeleted bool) ([]*JournalEntry, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Preload("Lines").Where("business_id = ?", businessId)
	if fromDate != nil && toDate != nil {
		dbCtx = dbCtx.Where("entry_date BETWEEN ? AND ?", fromDate, toDate)
	}
	if referenceType != nil && *referenceType != "" {
		dbCtx = dbCtx.Where("reference_type = ?", *referenceType)
	}
	if !includeDeleted {
		dbCtx = dbCtx.Where("is_deleted = ?", false)
	}

	var results []*JournalEntry
	if err := dbCtx.Order("entry_date, id").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
