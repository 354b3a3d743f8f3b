package models

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/asaalabbadi2-web/goldbooks_backend/config"
	"github.com/asaalabbadi2-web/goldbooks_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Account is one node of the chart of accounts. Financial (cash) nodes and
// weight-memo nodes live in the same tree; a memo node's code is always the
// marker digit prefixed to its financial counterpart's code, and the two are
// linked symmetrically through MirrorAccountId.
type Account struct {
	ID                int             `gorm:"primary_key" json:"id"`
	BusinessId        string          `gorm:"size:64;not null;uniqueIndex:idx_account_business_code,priority:1" json:"business_id"`
	Code              string          `gorm:"size:20;not null;uniqueIndex:idx_account_business_code,priority:2" json:"code" binding:"required"`
	Name              string          `gorm:"index;size:100;not null" json:"name" binding:"required"`
	MainType          AccountMainType `gorm:"type:enum('Asset', 'Liability', 'Equity', 'Income', 'Expense');default:'Expense';index;size:10;not null" json:"main_type" binding:"required"`
	UnitKind          UnitKind        `gorm:"type:enum('Cash', 'Weight', 'Both');default:'Cash';index;size:10;not null" json:"unit_kind"`
	Description       string          `gorm:"type:text" json:"description"`
	ParentAccountId   int             `gorm:"index" json:"parent_account_id"`
	MirrorAccountId   int             `gorm:"index" json:"mirror_account_id"`
	IsActive          *bool           `gorm:"not null;default:true" json:"is_active"`
	IsSystemDefault   *bool           `gorm:"not null;default:false" json:"is_system_default"`
	SystemDefaultCode string          `gorm:"index;size:3" json:"system_default_code"`
	// Running balances, maintained only by journal posting. Debits minus
	// credits, one column per unit.
	Balance   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"balance"`
	Balance18 decimal.Decimal `gorm:"type:decimal(20,3);default:0" json:"balance18"`
	Balance21 decimal.Decimal `gorm:"type:decimal(20,3);default:0" json:"balance21"`
	Balance22 decimal.Decimal `gorm:"type:decimal(20,3);default:0" json:"balance22"`
	Balance24 decimal.Decimal `gorm:"type:decimal(20,3);default:0" json:"balance24"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewAccount struct {
	Code            string          `json:"code" binding:"required"`
	Name            string          `json:"name" binding:"required"`
	MainType        AccountMainType `json:"main_type" binding:"required"`
	UnitKind        UnitKind        `json:"unit_kind"`
	Description     string          `json:"description"`
	ParentAccountId int             `json:"parent_account_id"`
}

// System default codes resolved through GetSystemAccounts.
const (
	AccountCodeCustomersRoot     = "CUS"
	AccountCodeSuppliersRoot     = "SUP"
	AccountCodeEmployeesRoot     = "EMP"
	AccountCodeGoldPriceVariance = "GPV"
	AccountCodeWeightMemoRoot    = "WMR"
)

func (a *Account) GetId() int {
	return a.ID
}

// WeightBalance returns the running balance for one karat grade.
func (a *Account) WeightBalance(k Karat) decimal.Decimal {
	switch k {
	case Karat18:
		return a.Balance18
	case Karat21:
		return a.Balance21
	case Karat22:
		return a.Balance22
	case Karat24:
		return a.Balance24
	}
	return decimal.Zero
}

// validate input for both create & update. (id = 0 for create)

func (input *NewAccount) validate(ctx context.Context, businessId string, id int) error {
	if id > 0 {
		if err := utils.ValidateResourceId[Account](ctx, businessId, id); err != nil {
			return err
		}
	}
	if input.UnitKind == "" {
		input.UnitKind = UnitKindCash
	}

	if _, err := strconv.ParseInt(input.Code, 10, 64); err != nil {
		return errors.New("account code must be numeric")
	}
	// marker-digit rule: weight-only codes start with the memo prefix, and
	// the memo prefix is reserved for them
	if input.UnitKind == UnitKindWeight && !IsMemoCode(input.Code) {
		return errors.New("weight account code must start with the memo marker digit")
	}
	if input.UnitKind != UnitKindWeight && IsMemoCode(input.Code) {
		return errors.New("memo number space is reserved for weight accounts")
	}

	// code
	if err := utils.ValidateUnique[Account](ctx, businessId, "code", input.Code, id); err != nil {
		return err
	}
	// parent
	if input.ParentAccountId > 0 {
		if err := utils.ValidateResourceId[Account](ctx, businessId, input.ParentAccountId); err != nil {
			return errors.New("parent not found")
		}
	}
	return nil
}

func CreateAccount(ctx context.Context, input *NewAccount) (*Account, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	db := config.GetDB()
	return createAccountTx(ctx, db, businessId, input)
}

// createAccountTx inserts without re-validating; used inside provisioning
// transactions where the caller already holds the range lock.
func createAccountTx(ctx context.Context, tx *gorm.DB, businessId string, input *NewAccount) (*Account, error) {
	unitKind := input.UnitKind
	if unitKind == "" {
		unitKind = UnitKindCash
	}
	account := Account{
		BusinessId:      businessId,
		Code:            input.Code,
		Name:            input.Name,
		MainType:        input.MainType,
		UnitKind:        unitKind,
		Description:     input.Description,
		ParentAccountId: input.ParentAccountId,
		IsActive:        utils.NewTrue(),
		IsSystemDefault: utils.NewFalse(),
	}
	if err := tx.WithContext(ctx).Create(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func UpdateAccount(ctx context.Context, id int, input *NewAccount) (*Account, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	account, err := utils.FetchModel[Account](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"Name":        input.Name,
		"Description": input.Description,
	}
	// Code, unit kind and tree position are derived by the numbering engine
	// and provisioner; they are never edited in place.

	db := config.GetDB()
	err = db.WithContext(ctx).Model(account).Updates(updates).Error
	if err != nil {
		return nil, err
	}
	return account, nil
}

func MarkAccountActive(ctx context.Context, id int, isActive bool) (*Account, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	main, err := utils.FetchModel[Account](ctx, businessId, id)
	if err != nil {
		return nil, err
	}
	tx := db.Begin()
	if err := markChildAccountsActive(tx, ctx, main, isActive); err != nil {
		tx.Rollback()
		return nil, err
	}
	return main, tx.Commit().Error
}

func markChildAccountsActive(tx *gorm.DB, ctx context.Context, main *Account, isActive bool) error {
	err := tx.WithContext(ctx).Model(main).Updates(Account{
		IsActive: &isActive,
	}).Error
	if err != nil {
		return err
	}

	// find & update child accounts
	var children []*Account
	err = tx.WithContext(ctx).Where("parent_account_id = ?", main.ID).Find(&children).Error
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := markChildAccountsActive(tx, ctx, child, isActive); err != nil {
			return err
		}
	}
	return nil
}

func DeleteAccount(ctx context.Context, id int) (*Account, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()

	result, err := utils.FetchModel[Account](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	if result.IsSystemDefault != nil && *result.IsSystemDefault {
		return nil, errors.New("cannot delete system-default account")
	}

	var count int64
	if err := db.WithContext(ctx).Model(&Account{}).
		Where("parent_account_id = ?", id).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("this account has child account(s)")
	}

	if err := db.WithContext(ctx).Model(&JournalEntryLine{}).
		Where("account_id = ?", id).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("this account has journal lines")
	}

	if err := db.WithContext(ctx).Delete(result).Error; err != nil {
		return nil, err
	}

	// unlink the mirror rather than deleting it; its side may still carry
	// history of its own
	if result.MirrorAccountId > 0 {
		if err := db.WithContext(ctx).Model(&Account{}).
			Where("id = ?", result.MirrorAccountId).
			Update("mirror_account_id", 0).Error; err != nil {
			return nil, err
		}
	}

	return result, nil
}

func GetAccount(ctx context.Context, id int) (*Account, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[Account](ctx, businessId, id)
}

func GetAccountByCode(ctx context.Context, code string) (*Account, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return getAccountByCodeTx(ctx, config.GetDB(), businessId, code)
}

func getAccountByCodeTx(ctx context.Context, tx *gorm.DB, businessId string, code string) (*Account, error) {
	var result Account
	err := tx.WithContext(ctx).
		Where("business_id = ? AND code = ?", businessId, code).
		First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &result, nil
}

func GetAccounts(ctx context.Context, name *string, code *string) ([]*Account, error) {

	db := config.GetDB()
	var results []*Account

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}
	if code != nil && len(*code) > 0 {
		dbCtx = dbCtx.Where("code LIKE ?", *code+"%")
	}
	err := dbCtx.Order("code").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// GetSystemAccounts returns the system-default code -> account id map,
// redis-cached per business.
func GetSystemAccounts(businessId string) (map[string]int, error) {
	var accounts []*Account
	var sysAccounts map[string]int

	exists, err := config.GetRedisObject("SystemAccounts:"+businessId, &sysAccounts)
	if err != nil {
		return nil, err
	}
	if !exists {
		db := config.GetDB()
		businessUuid, err := uuid.Parse(businessId)
		if err != nil {
			return nil, err
		}
		if err := db.Select("id", "system_default_code").
			Where("business_id = ?", businessUuid).
			Where("is_system_default = ?", true).
			Find(&accounts).Error; err != nil {
			return nil, err
		}
		sysAccounts = make(map[string]int)
		for _, acc := range accounts {
			sysAccounts[acc.SystemDefaultCode] = acc.ID
		}
		if err := config.SetRedisObject("SystemAccounts:"+businessId, &sysAccounts, 0); err != nil {
			return nil, err
		}
	}
	return sysAccounts, nil
}
