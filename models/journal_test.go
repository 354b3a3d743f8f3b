package models

import (
	"errors"
	"fmt"
	"regexp"
	"testing"

	"github.com/asaalabbadi2-web/goldbooks_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestValidateEntryBalanceCash(t *testing.T) {
	lines := []NewJournalEntryLine{
		{AccountId: 1, Debit: d("1000")},
		{AccountId: 2, Credit: d("1000")},
	}
	require.NoError(t, validateEntryBalance(lines))

	// off by 1.00 on the cash unit
	lines[1].Credit = d("999")
	err := validateEntryBalance(lines)
	require.Error(t, err)
	var balErr *utils.BalanceError
	require.ErrorAs(t, err, &balErr)
	assert.Equal(t, "cash", balErr.Unit)
	assert.True(t, balErr.Delta.Equal(d("1.00")), "delta %s", balErr.Delta)
}

func TestValidateEntryBalancePerKaratIndependence(t *testing.T) {
	// balanced in 21k and 24k separately; mixing grades does not offset
	lines := []NewJournalEntryLine{
		{AccountId: 1, Debit21: d("10.000")},
		{AccountId: 2, Credit21: d("10.000")},
		{AccountId: 1, Debit24: d("3.500")},
		{AccountId: 3, Credit24: d("3.500")},
	}
	require.NoError(t, validateEntryBalance(lines))

	// 10g debit in 21k against 10g credit in 24k must NOT balance
	lines = []NewJournalEntryLine{
		{AccountId: 1, Debit21: d("10.000")},
		{AccountId: 2, Credit24: d("10.000")},
	}
	err := validateEntryBalance(lines)
	require.Error(t, err)
	var balErr *utils.BalanceError
	require.ErrorAs(t, err, &balErr)
	assert.Equal(t, "weight-21k", balErr.Unit)
}

func TestValidateEntryBalanceTolerances(t *testing.T) {
	// residue inside tolerance is accepted
	lines := []NewJournalEntryLine{
		{AccountId: 1, Debit: d("100.00"), Debit21: d("5.000")},
		{AccountId: 2, Credit: d("99.99"), Credit21: d("4.9995")},
	}
	require.NoError(t, validateEntryBalance(lines))

	// just past the weight tolerance
	lines[1].Credit21 = d("4.998")
	err := validateEntryBalance(lines)
	require.Error(t, err)
	var balErr *utils.BalanceError
	require.ErrorAs(t, err, &balErr)
	assert.Equal(t, "weight-21k", balErr.Unit)
	assert.True(t, balErr.Delta.Equal(d("0.002")), "delta %s", balErr.Delta)
}

func TestValidateEntryBalanceMixedUnits(t *testing.T) {
	// cash and weight on the same entry, each side balanced
	lines := []NewJournalEntryLine{
		{AccountId: 1, Debit: d("2500.00")},
		{AccountId: 2, Credit: d("2500.00"), Credit21: d("12.000")},
		{AccountId: 3, Debit21: d("12.000")},
	}
	require.NoError(t, validateEntryBalance(lines))
}

func TestReceiveJournalEntryLinesRejectsEmptyLine(t *testing.T) {
	_, err := receiveJournalEntryLines("biz", &NewJournalEntry{
		Lines: []NewJournalEntryLine{{AccountId: 1}},
	})
	require.Error(t, err)
}

func TestEntryNumberFormat(t *testing.T) {
	assert.Equal(t, "JE-2026-00001", entryNumber(2026, 1))
	assert.Equal(t, "JE-2026-00042", entryNumber(2026, 42))
	assert.Equal(t, "JE-2026-123456", entryNumber(2026, 123456))
}

// The entry-number retry in posting (and the party provisioner's allocation
// retry) trigger off duplicate-key detection; it must recognize both GORM's
// translated error and the raw MySQL 1062 message.
func TestIsDuplicateKeyError(t *testing.T) {
	assert.True(t, isDuplicateKeyError(gorm.ErrDuplicatedKey))
	assert.True(t, isDuplicateKeyError(fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey)))
	assert.True(t, isDuplicateKeyError(errors.New("Error 1062 (23000): Duplicate entry 'b1-JE-2026-00005' for key 'journal_entries.idx_entry_business_number'")))
	assert.False(t, isDuplicateKeyError(nil))
	assert.False(t, isDuplicateKeyError(errors.New("deadlock found when trying to get lock")))
	assert.False(t, isDuplicateKeyError(gorm.ErrRecordNotFound))
}

func TestFallbackEntryNumberIsUnique(t *testing.T) {
	pattern := regexp.MustCompile(`^JE-2026-X[0-9a-f]{8}$`)
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		n := fallbackEntryNumber(2026)
		assert.Regexp(t, pattern, n)
		assert.False(t, seen[n], "duplicate fallback number %s", n)
		seen[n] = true
	}
}
