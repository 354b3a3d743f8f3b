package models

import (
	"context"
	"fmt"
	"strconv"

	"github.com/asaalabbadi2-web/goldbooks_backend/utils"
	"gorm.io/gorm"
)

// MemoAccountPrefix is the reserved marker digit for weight-memo account
// codes. The memo number of a financial account is always this prefix
// concatenated with the financial code, so the two number spaces stay
// isomorphic.
const MemoAccountPrefix = "7"

// NumberRange describes the legal child numbers under one parent account.
type NumberRange struct {
	Start       int64
	End         int64
	Step        int64
	ChildLength int
}

// ChildRange maps a parent account code to the range, step and digit count of
// its next-level children:
//
//	parent length 1: parent*10+1 .. parent*10+9,    step 1,  3 -> 31..39
//	parent length 2: parent*10   .. parent*10+80,   step 10, 11 -> 110..190
//	parent length 3: parent*10   .. parent*10+90,   step 10, 110 -> 1100..1190
//	parent length 4: parent*1000 .. parent*1000+999, step 1, 1100 -> 1100000..1100999
//	other lengths:   parent*10   .. parent*10+9,    step 1
func ChildRange(parentCode string) (NumberRange, error) {
	parent, err := strconv.ParseInt(parentCode, 10, 64)
	if err != nil {
		return NumberRange{}, &utils.IntegrityError{Code: parentCode, Reason: "account code is not numeric"}
	}

	switch len(parentCode) {
	case 1:
		return NumberRange{Start: parent*10 + 1, End: parent*10 + 9, Step: 1, ChildLength: 2}, nil
	case 2:
		return NumberRange{Start: parent * 10, End: parent*10 + 80, Step: 10, ChildLength: 3}, nil
	case 3:
		return NumberRange{Start: parent * 10, End: parent*10 + 90, Step: 10, ChildLength: 4}, nil
	case 4:
		return NumberRange{Start: parent * 1000, End: parent*1000 + 999, Step: 1, ChildLength: 7}, nil
	default:
		return NumberRange{Start: parent * 10, End: parent*10 + 9, Step: 1, ChildLength: len(parentCode) + 1}, nil
	}
}

// MemoChildNumber derives the weight-memo code for a financial code.
func MemoChildNumber(financialCode string) string {
	return MemoAccountPrefix + financialCode
}

// IsMemoCode reports whether a code lives in the memo number space.
func IsMemoCode(code string) bool {
	return len(code) > 0 && code[0:1] == MemoAccountPrefix
}

func formatCode(n int64, length int) string {
	return fmt.Sprintf("%0*d", length, n)
}

// nextAvailableIn appends past the highest used number: start when the range
// is untouched, otherwise highest used + step. With spacing disabled the
// increment is 1 regardless of the range's step.
func nextAvailableIn(r NumberRange, used []int64, spacing bool) (int64, error) {
	var maxUsed int64
	found := false
	for _, u := range used {
		if u < r.Start || u > r.End {
			continue
		}
		if !found || u > maxUsed {
			maxUsed = u
			found = true
		}
	}
	if !found {
		return r.Start, nil
	}

	step := r.Step
	if !spacing {
		step = 1
	}
	candidate := maxUsed + step
	if candidate > r.End {
		return 0, &utils.CapacityError{
			Scope:  "account number range",
			Detail: fmt.Sprintf("range %d-%d is full", r.Start, r.End),
		}
	}
	return candidate, nil
}

// nextGapIn returns the first unused slot in the range, packing densely
// instead of appending. Used for the party-account tiers.
func nextGapIn(r NumberRange, used []int64) (int64, error) {
	taken := make(map[int64]bool, len(used))
	for _, u := range used {
		taken[u] = true
	}
	for v := r.Start; v <= r.End; v += r.Step {
		if !taken[v] {
			return v, nil
		}
	}
	return 0, &utils.CapacityError{
		Scope:  "account number range",
		Detail: fmt.Sprintf("range %d-%d is full", r.Start, r.End),
	}
}

// usedNumbersIn loads the numeric values of existing account codes of the
// range's digit count, restricted to [start, end].
func usedNumbersIn(ctx context.Context, tx *gorm.DB, businessId string, r NumberRange) ([]int64, error) {
	var codes []string
	if err := tx.WithContext(ctx).Model(&Account{}).
		Where("business_id = ? AND CHAR_LENGTH(code) = ?", businessId, r.ChildLength).
		Pluck("code", &codes).Error; err != nil {
		return nil, err
	}
	used := make([]int64, 0, len(codes))
	for _, c := range codes {
		n, err := strconv.ParseInt(c, 10, 64)
		if err != nil {
			continue
		}
		if n >= r.Start && n <= r.End {
			used = append(used, n)
		}
	}
	return used, nil
}

// NextAvailableNumber allocates the next child code under parentCode. The
// scan and the caller's insert must share tx; the per-parent advisory lock
// plus the unique (business_id, code) index close the read-then-write race.
func NextAvailableNumber(ctx context.Context, tx *gorm.DB, businessId string, parentCode string, spacing bool) (string, error) {
	r, err := ChildRange(parentCode)
	if err != nil {
		return "", err
	}

	if err := acquireRangeLock(tx, businessId, parentCode); err != nil {
		return "", err
	}
	defer releaseRangeLock(tx, businessId, parentCode)

	used, err := usedNumbersIn(ctx, tx, businessId, r)
	if err != nil {
		return "", err
	}
	n, err := nextAvailableIn(r, used, spacing)
	if err != nil {
		if capErr, ok := err.(*utils.CapacityError); ok {
			capErr.Detail = fmt.Sprintf("under parent %s: %s", parentCode, capErr.Detail)
		}
		return "", err
	}
	return formatCode(n, r.ChildLength), nil
}

// NextSequentialInRange finds the first gap in an explicit range. The party
// provisioner uses it to pack the primary tier before spilling to the
// declared fallback tier.
func NextSequentialInRange(ctx context.Context, tx *gorm.DB, businessId string, r NumberRange) (string, error) {
	used, err := usedNumbersIn(ctx, tx, businessId, r)
	if err != nil {
		return "", err
	}
	n, err := nextGapIn(r, used)
	if err != nil {
		return "", err
	}
	return formatCode(n, r.ChildLength), nil
}
