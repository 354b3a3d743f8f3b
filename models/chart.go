package models

import (
	"context"
	"errors"

	"github.com/asaalabbadi2-web/goldbooks_backend/config"
	"github.com/asaalabbadi2-web/goldbooks_backend/utils"
	"gorm.io/gorm"
)

// SeedChartOfAccounts bootstraps the base tree for a business: the five
// financial roots, the weight-memo root, the party category groups and the
// gold price variance account (with its memo mirror). Idempotent.
func SeedChartOfAccounts(ctx context.Context) error {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return errors.New("business id is required")
	}

	db := config.GetDB()
	tx := db.Begin()

	type seedRow struct {
		code     string
		name     string
		mainType AccountMainType
		unitKind UnitKind
		parent   string // code of parent, empty for roots
		sysCode  string
	}

	rows := []seedRow{
		{"1", "Assets", AccountMainTypeAsset, UnitKindCash, "", ""},
		{"2", "Liabilities", AccountMainTypeLiability, UnitKindCash, "", ""},
		{"3", "Equity", AccountMainTypeEquity, UnitKindCash, "", ""},
		{"4", "Income", AccountMainTypeIncome, UnitKindCash, "", ""},
		{"5", "Expenses", AccountMainTypeExpense, UnitKindCash, "", ""},
		{MemoAccountPrefix, "Weight Memo", AccountMainTypeAsset, UnitKindWeight, "", AccountCodeWeightMemoRoot},

		{"11", "Cash & Banks", AccountMainTypeAsset, UnitKindCash, "1", ""},
		{"12", "Receivables", AccountMainTypeAsset, UnitKindCash, "1", ""},
		{"13", "Gold Inventory", AccountMainTypeAsset, UnitKindBoth, "1", ""},
		{"21", "Payables", AccountMainTypeLiability, UnitKindCash, "2", ""},
		{"22", "Employee Accounts", AccountMainTypeLiability, UnitKindCash, "2", ""},
		{"41", "Sales", AccountMainTypeIncome, UnitKindCash, "4", ""},
		{"43", "Gold Trading", AccountMainTypeIncome, UnitKindCash, "4", ""},

		{"120", "Customers", AccountMainTypeAsset, UnitKindCash, "12", AccountCodeCustomersRoot},
		{"210", "Suppliers", AccountMainTypeLiability, UnitKindCash, "21", AccountCodeSuppliersRoot},
		{"220", "Employees", AccountMainTypeLiability, UnitKindCash, "22", AccountCodeEmployeesRoot},
		{"430", "Gold Price Variance", AccountMainTypeIncome, UnitKindCash, "43", AccountCodeGoldPriceVariance},
	}

	byCode := make(map[string]*Account, len(rows))
	for _, row := range rows {
		parentId := 0
		if row.parent != "" {
			parent, ok := byCode[row.parent]
			if !ok {
				tx.Rollback()
				return &utils.IntegrityError{Code: row.parent, Reason: "seed parent missing"}
			}
			parentId = parent.ID
		}
		account, err := seedAccountTx(ctx, tx, businessId, &NewAccount{
			Code:            row.code,
			Name:            row.name,
			MainType:        row.mainType,
			UnitKind:        row.unitKind,
			ParentAccountId: parentId,
		}, row.sysCode)
		if err != nil {
			tx.Rollback()
			return err
		}
		byCode[row.code] = account
	}

	// The variance account posts weight relief through its memo mirror, so it
	// must exist up front. Everything else mirrors lazily via provisioning.
	if _, err := ensureMemoAccountTx(ctx, tx, businessId, byCode["430"]); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit().Error; err != nil {
		return err
	}
	return config.RemoveRedisKey("SystemAccounts:" + businessId)
}

// seedAccountTx inserts an account if its code is free; existing rows are
// returned untouched (re-seeding is a no-op).
func seedAccountTx(ctx context.Context, tx *gorm.DB, businessId string, input *NewAccount, sysCode string) (*Account, error) {
	existing, err := getAccountByCodeTx(ctx, tx, businessId, input.Code)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, err
	}

	account, err := createAccountTx(ctx, tx, businessId, input)
	if err != nil {
		return nil, err
	}
	if sysCode != "" {
		if err := tx.WithContext(ctx).Model(account).Updates(map[string]interface{}{
			"IsSystemDefault":   true,
			"SystemDefaultCode": sysCode,
		}).Error; err != nil {
			return nil, err
		}
	}
	return account, nil
}

// ensureMemoAccountTx returns the weight-memo counterpart of a financial
// account, creating it (and all missing memo ancestors, bottom of the chain
// first) so the memo tree stays shape-isomorphic with the financial tree.
// A code collision with a non-weight account is fatal.
func ensureMemoAccountTx(ctx context.Context, tx *gorm.DB, businessId string, financial *Account) (*Account, error) {
	if financial.UnitKind == UnitKindWeight {
		return nil, &utils.IntegrityError{Code: financial.Code, Reason: "cannot mirror a weight account"}
	}

	memoCode := MemoChildNumber(financial.Code)
	existing, err := getAccountByCodeTx(ctx, tx, businessId, memoCode)
	if err == nil {
		if existing.UnitKind != UnitKindWeight {
			return nil, &utils.IntegrityError{Code: memoCode, Reason: "memo number collides with a non-memo account"}
		}
		if err := linkMirrorsTx(ctx, tx, financial, existing); err != nil {
			return nil, err
		}
		return existing, nil
	}
	if !errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, err
	}

	// resolve the memo parent: the mirror of the financial parent, or the
	// memo root for top-level accounts
	var memoParentId int
	if financial.ParentAccountId > 0 {
		var parentFin Account
		if err := tx.WithContext(ctx).
			Where("business_id = ?", businessId).
			First(&parentFin, financial.ParentAccountId).Error; err != nil {
			return nil, utils.ErrorRecordNotFound
		}
		memoParent, err := ensureMemoAccountTx(ctx, tx, businessId, &parentFin)
		if err != nil {
			return nil, err
		}
		memoParentId = memoParent.ID
	} else {
		memoRoot, err := getAccountByCodeTx(ctx, tx, businessId, MemoAccountPrefix)
		if errors.Is(err, utils.ErrorRecordNotFound) {
			memoRoot, err = seedAccountTx(ctx, tx, businessId, &NewAccount{
				Code:     MemoAccountPrefix,
				Name:     "Weight Memo",
				MainType: AccountMainTypeAsset,
				UnitKind: UnitKindWeight,
			}, AccountCodeWeightMemoRoot)
		}
		if err != nil {
			return nil, err
		}
		memoParentId = memoRoot.ID
	}

	memo, err := createAccountTx(ctx, tx, businessId, &NewAccount{
		Code:            memoCode,
		Name:            financial.Name + " (Weight)",
		MainType:        financial.MainType,
		UnitKind:        UnitKindWeight,
		ParentAccountId: memoParentId,
	})
	if err != nil {
		return nil, err
	}
	if err := linkMirrorsTx(ctx, tx, financial, memo); err != nil {
		return nil, err
	}
	return memo, nil
}

// linkMirrorsTx writes the symmetric mirror link; mirror.mirror == account.
func linkMirrorsTx(ctx context.Context, tx *gorm.DB, financial *Account, memo *Account) error {
	if financial.MirrorAccountId == memo.ID && memo.MirrorAccountId == financial.ID {
		return nil
	}
	if err := tx.WithContext(ctx).Model(&Account{}).
		Where("id = ?", financial.ID).
		Update("mirror_account_id", memo.ID).Error; err != nil {
		return err
	}
	if err := tx.WithContext(ctx).Model(&Account{}).
		Where("id = ?", memo.ID).
		Update("mirror_account_id", financial.ID).Error; err != nil {
		return err
	}
	financial.MirrorAccountId = memo.ID
	memo.MirrorAccountId = financial.ID
	return nil
}
