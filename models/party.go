package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/asaalabbadi2-web/goldbooks_backend/config"
	"github.com/asaalabbadi2-web/goldbooks_backend/utils"
	"gorm.io/gorm"
)

// Party is a customer, supplier or employee that owns a mirrored pair of
// ledger accounts: a financial posting account and its weight-memo mirror.
type Party struct {
	ID            int           `gorm:"primary_key" json:"id"`
	BusinessId    string        `gorm:"size:64;index;not null" json:"business_id"`
	Name          string        `gorm:"index;size:100;not null" json:"name" binding:"required"`
	Category      PartyCategory `gorm:"type:enum('Customer', 'Supplier', 'Employee');default:'Customer';index;size:10;not null" json:"category" binding:"required"`
	AccountId     int           `gorm:"index" json:"account_id"`
	MemoAccountId int           `gorm:"index" json:"memo_account_id"`
	IsActive      *bool         `gorm:"not null;default:true" json:"is_active"`
	CreatedAt     time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewParty struct {
	Name     string        `json:"name" binding:"required"`
	Category PartyCategory `json:"category" binding:"required"`
}

func (p *Party) GetId() int {
	return p.ID
}

func (input *NewParty) validate(ctx context.Context, businessId string, id int) error {
	if err := utils.ValidateUnique[Party](ctx, businessId, "name", input.Name, id); err != nil {
		return err
	}
	switch input.Category {
	case PartyCategoryCustomer, PartyCategorySupplier, PartyCategoryEmployee:
	default:
		return errors.New("invalid party category")
	}
	return nil
}

func CreateParty(ctx context.Context, input *NewParty) (*Party, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	party := Party{
		BusinessId: businessId,
		Name:       input.Name,
		Category:   input.Category,
		IsActive:   utils.NewTrue(),
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&party).Error; err != nil {
		return nil, err
	}
	return &party, nil
}

func UpdateParty(ctx context.Context, id int, input *NewParty) (*Party, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	party, err := utils.FetchModel[Party](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	updates := map[string]interface{}{
		"Name": input.Name,
	}
	// category drives the account tree position; it is fixed once accounts
	// are provisioned
	if party.AccountId == 0 {
		updates["Category"] = input.Category
	}
	if err := db.WithContext(ctx).Model(party).Updates(updates).Error; err != nil {
		return nil, err
	}

	// keep the posting accounts named after the party
	if party.AccountId > 0 {
		if err := db.WithContext(ctx).Model(&Account{}).
			Where("id = ?", party.AccountId).
			Update("name", input.Name).Error; err != nil {
			return nil, err
		}
	}
	if party.MemoAccountId > 0 {
		if err := db.WithContext(ctx).Model(&Account{}).
			Where("id = ?", party.MemoAccountId).
			Update("name", input.Name+" (Weight)").Error; err != nil {
			return nil, err
		}
	}
	return party, nil
}

func DeleteParty(ctx context.Context, id int) (*Party, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	party, err := utils.FetchModel[Party](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	var count int64
	if err := db.WithContext(ctx).Model(&JournalEntryLine{}).
		Where("party_id = ?", id).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("this party has journal lines")
	}

	if err := db.WithContext(ctx).Delete(party).Error; err != nil {
		return nil, err
	}
	return party, nil
}

func GetParty(ctx context.Context, id int) (*Party, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[Party](ctx, businessId, id)
}

func GetParties(ctx context.Context, name *string, category *PartyCategory) ([]*Party, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}
	if category != nil && *category != "" {
		dbCtx = dbCtx.Where("category = ?", *category)
	}
	var results []*Party
	if err := dbCtx.Order("name").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func categorySystemCode(category PartyCategory) string {
	switch category {
	case PartyCategorySupplier:
		return AccountCodeSuppliersRoot
	case PartyCategoryEmployee:
		return AccountCodeEmployeesRoot
	default:
		return AccountCodeCustomersRoot
	}
}

// resolveCategoryRootTx finds the category group account, refreshing past a
// stale cache. A missing root is fatal: provisioning never invents a chart.
func resolveCategoryRootTx(ctx context.Context, tx *gorm.DB, businessId string, category PartyCategory) (*Account, error) {
	sysCode := categorySystemCode(category)

	var root Account
	err := tx.WithContext(ctx).
		Where("business_id = ? AND system_default_code = ? AND is_system_default = ?", businessId, sysCode, true).
		First(&root).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &utils.IntegrityError{Code: sysCode, Reason: "category root account is missing; seed the chart of accounts first"}
		}
		return nil, err
	}
	return &root, nil
}

// partyAccountValid checks an existing account reference: it must be a
// currency-only, non-memo account parented under the category group
// (directly, or under its overflow node).
func partyAccountValid(account *Account, root *Account, overflowId int) bool {
	if account == nil {
		return false
	}
	if account.UnitKind != UnitKindCash || IsMemoCode(account.Code) {
		return false
	}
	if account.ParentAccountId == root.ID {
		return true
	}
	return overflowId > 0 && account.ParentAccountId == overflowId
}

// overflowNodeCode is the last slot of the category's primary tier, reserved
// as the parent of the fallback tier.
func overflowNodeCode(root *Account) (string, NumberRange, error) {
	r, err := ChildRange(root.Code)
	if err != nil {
		return "", NumberRange{}, err
	}
	return formatCode(r.End, r.ChildLength), r, nil
}

// allocatePartyNumberTx picks the party's financial account number: first gap
// in the primary tier under the category root, spilling into the reserved
// overflow node's tier when the primary is packed full.
func allocatePartyNumberTx(ctx context.Context, tx *gorm.DB, businessId string, root *Account) (code string, parent *Account, err error) {
	overflowCode, r, err := overflowNodeCode(root)
	if err != nil {
		return "", nil, err
	}

	if err := acquireRangeLock(tx, businessId, root.Code); err != nil {
		return "", nil, err
	}
	defer releaseRangeLock(tx, businessId, root.Code)

	// primary tier, minus the reserved overflow slot
	primary := r
	primary.End = r.End - r.Step
	code, err = NextSequentialInRange(ctx, tx, businessId, primary)
	if err == nil {
		return code, root, nil
	}
	var capErr *utils.CapacityError
	if !errors.As(err, &capErr) {
		return "", nil, err
	}

	// fallback tier under the overflow node
	overflow, err := getAccountByCodeTx(ctx, tx, businessId, overflowCode)
	if errors.Is(err, utils.ErrorRecordNotFound) {
		overflow, err = createAccountTx(ctx, tx, businessId, &NewAccount{
			Code:            overflowCode,
			Name:            root.Name + " Overflow",
			MainType:        root.MainType,
			UnitKind:        root.UnitKind,
			ParentAccountId: root.ID,
		})
	}
	if err != nil {
		return "", nil, err
	}

	fallbackRange, err := ChildRange(overflow.Code)
	if err != nil {
		return "", nil, err
	}
	code, err = NextSequentialInRange(ctx, tx, businessId, fallbackRange)
	if err != nil {
		return "", nil, err
	}
	return code, overflow, nil
}

// EnsurePartyAccounts guarantees the party owns a valid financial account and
// its weight-memo mirror, creating and linking whatever is missing.
// Idempotent: repeated calls return the same pair.
func EnsurePartyAccounts(ctx context.Context, partyId int) (*Account, *Account, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, nil, errors.New("business id is required")
	}

	party, err := utils.FetchModel[Party](ctx, businessId, partyId)
	if err != nil {
		return nil, nil, err
	}

	db := config.GetDB()

	var financial, memo *Account
	// one retry: a concurrent allocation for the same range can win the
	// unique (business_id, code) index; recompute and try again
	for attempt := 0; attempt < 2; attempt++ {
		tx := db.Begin()
		financial, memo, err = ensurePartyAccountsTx(ctx, tx, businessId, party)
		if err != nil {
			tx.Rollback()
			if attempt == 0 && isDuplicateKeyError(err) {
				continue
			}
			return nil, nil, err
		}
		if err = tx.Commit().Error; err != nil {
			return nil, nil, err
		}
		return financial, memo, nil
	}
	return nil, nil, err
}

func ensurePartyAccountsTx(ctx context.Context, tx *gorm.DB, businessId string, party *Party) (*Account, *Account, error) {
	root, err := resolveCategoryRootTx(ctx, tx, businessId, party.Category)
	if err != nil {
		return nil, nil, err
	}

	overflowCode, _, err := overflowNodeCode(root)
	if err != nil {
		return nil, nil, err
	}
	overflowId := 0
	if overflow, oerr := getAccountByCodeTx(ctx, tx, businessId, overflowCode); oerr == nil {
		overflowId = overflow.ID
	}

	// step 1: validate an existing reference; an invalid one is discarded,
	// never deleted
	var financial *Account
	if party.AccountId > 0 {
		existing, ferr := utils.FetchModel[Account](ctx, businessId, party.AccountId)
		if ferr == nil && partyAccountValid(existing, root, overflowId) {
			financial = existing
		}
	}

	// step 2: allocate and create a fresh financial account
	if financial == nil {
		code, parent, aerr := allocatePartyNumberTx(ctx, tx, businessId, root)
		if aerr != nil {
			return nil, nil, aerr
		}
		financial, aerr = createAccountTx(ctx, tx, businessId, &NewAccount{
			Code:            code,
			Name:            party.Name,
			MainType:        root.MainType,
			UnitKind:        UnitKindCash,
			ParentAccountId: parent.ID,
		})
		if aerr != nil {
			return nil, nil, aerr
		}
	}

	// steps 3+4: mirror the whole parent chain and link symmetrically
	memo, err := ensureMemoAccountTx(ctx, tx, businessId, financial)
	if err != nil {
		return nil, nil, err
	}

	if party.AccountId != financial.ID || party.MemoAccountId != memo.ID {
		if err := tx.WithContext(ctx).Model(&Party{}).
			Where("id = ?", party.ID).
			Updates(map[string]interface{}{
				"AccountId":     financial.ID,
				"MemoAccountId": memo.ID,
			}).Error; err != nil {
			return nil, nil, err
		}
		party.AccountId = financial.ID
		party.MemoAccountId = memo.ID
	}
	return financial, memo, nil
}

func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "Duplicate entry")
}
