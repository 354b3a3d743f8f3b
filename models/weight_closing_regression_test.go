package models_test

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/asaalabbadi2-web/goldbooks_backend/config"
	"github.com/asaalabbadi2-web/goldbooks_backend/models"
	"github.com/asaalabbadi2-web/goldbooks_backend/utils"
	"github.com/shopspring/decimal"
)

// Filling a weight closing order in two executions must conserve weight,
// close the order, post a balanced variance journal per fill and move the
// party's memo balance by the relieved weight. A third fill must be rejected.
func TestWeightClosingOrderLifecycle(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "goldbooks_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	if err := models.MigrateTable(); err != nil {
		t.Fatalf("MigrateTable: %v", err)
	}

	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Test")
	ctx = utils.SetUsernameInContext(ctx, "test@local")

	biz, err := models.CreateBusiness(ctx, &models.NewBusiness{
		Name:  "Closing House",
		Email: "owner@closing.test",
	})
	if err != nil {
		t.Fatalf("CreateBusiness: %v", err)
	}
	ctx = utils.SetBusinessIdInContext(ctx, biz.ID.String())

	if err := models.SeedChartOfAccounts(ctx); err != nil {
		t.Fatalf("SeedChartOfAccounts: %v", err)
	}

	customer, err := models.CreateParty(ctx, &models.NewParty{
		Name:     "Walk-in Customer",
		Category: models.PartyCategoryCustomer,
	})
	if err != nil {
		t.Fatalf("CreateParty: %v", err)
	}
	_, memo, err := models.EnsurePartyAccounts(ctx, customer.ID)
	if err != nil {
		t.Fatalf("EnsurePartyAccounts: %v", err)
	}

	// an invoice left the customer owing 10g at 21k, snapshot price 85/g
	snapshot := decimal.RequireFromString("85.00")
	order, err := models.OpenWeightClosingOrder(ctx, &models.NewWeightClosingOrder{
		InvoiceId:     1,
		PartyId:       customer.ID,
		TotalWeight:   decimal.RequireFromString("10.000"),
		SnapshotPrice: snapshot,
	})
	if err != nil {
		t.Fatalf("OpenWeightClosingOrder: %v", err)
	}
	if order.Status != models.WeightClosingStatusOpen {
		t.Fatalf("expected Open order, got %s", order.Status)
	}

	// the memo obligation the order settles: customer owes 10g
	if _, err := models.PostJournalEntry(ctx, &models.NewJournalEntry{
		EntryDate:   time.Now().UTC(),
		Description: "Invoice weight obligation",
		ReferenceId: 1,
		PartyId:     customer.ID,
		Lines: []models.NewJournalEntryLine{
			{AccountId: memo.ID, PartyId: customer.ID, Debit21: decimal.RequireFromString("10.000")},
			{AccountId: mustMemoMirror(t, ctx, models.AccountCodeGoldPriceVariance), Credit21: decimal.RequireFromString("10.000")},
		},
	}); err != nil {
		t.Fatalf("PostJournalEntry (obligation): %v", err)
	}

	// first fill: 6g at a higher price
	exec1, err := models.ExecuteWeightClosing(ctx, order.ID, decimal.RequireFromString("6.000"), decimal.RequireFromString("87.50"), models.PriceSourceManual)
	if err != nil {
		t.Fatalf("ExecuteWeightClosing (6g): %v", err)
	}
	if !exec1.DifferenceValue.Equal(decimal.RequireFromString("15.00")) {
		t.Fatalf("expected difference 15.00 on first fill, got %s", exec1.DifferenceValue)
	}

	mid, err := models.GetWeightClosingOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetWeightClosingOrder: %v", err)
	}
	if mid.Status != models.WeightClosingStatusPartiallyClosed {
		t.Fatalf("expected PartiallyClosed, got %s", mid.Status)
	}
	if !mid.ExecutedWeight.Add(mid.RemainingWeight).Equal(mid.TotalWeight) {
		t.Fatalf("weight not conserved: executed %s + remaining %s != total %s",
			mid.ExecutedWeight, mid.RemainingWeight, mid.TotalWeight)
	}

	// the variance journal references the order and balances per unit
	entry, err := models.GetJournalEntry(ctx, exec1.JournalEntryId)
	if err != nil {
		t.Fatalf("GetJournalEntry: %v", err)
	}
	if entry.ReferenceType != models.ReferenceTypeWeightClosing || entry.ReferenceId != order.ID {
		t.Fatalf("variance journal not linked to order: type=%s ref=%d", entry.ReferenceType, entry.ReferenceId)
	}
	if entry.CreatedBy != 1 || entry.CreatedByName != "Test" {
		t.Fatalf("posting actor not recorded: created_by=%d created_by_name=%q", entry.CreatedBy, entry.CreatedByName)
	}
	cash := decimal.Zero
	weight21 := decimal.Zero
	for i := range entry.Lines {
		line := &entry.Lines[i]
		cash = cash.Add(line.Debit).Sub(line.Credit)
		weight21 = weight21.Add(line.WeightDebit(models.Karat21)).Sub(line.WeightCredit(models.Karat21))
	}
	if !cash.IsZero() || !weight21.IsZero() {
		t.Fatalf("variance journal does not balance: cash %s, 21k %s", cash, weight21)
	}

	// second fill closes the order exactly
	if _, err := models.ExecuteWeightClosing(ctx, order.ID, decimal.RequireFromString("4.000"), decimal.RequireFromString("84.00"), models.PriceSourceManual); err != nil {
		t.Fatalf("ExecuteWeightClosing (4g): %v", err)
	}
	closed, err := models.GetWeightClosingOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetWeightClosingOrder (closed): %v", err)
	}
	if closed.Status != models.WeightClosingStatusClosed {
		t.Fatalf("expected Closed, got %s", closed.Status)
	}
	if !closed.RemainingWeight.IsZero() {
		t.Fatalf("expected zero remaining, got %s", closed.RemainingWeight)
	}
	if len(closed.Executions) != 2 {
		t.Fatalf("expected 2 executions, got %d", len(closed.Executions))
	}

	// executions and the order must tell the same story: the recorded fills
	// sum to the executed weight, and every fill posted its own journal
	filled := decimal.Zero
	entryNumbers := make(map[string]bool)
	for i := range closed.Executions {
		exec := &closed.Executions[i]
		filled = filled.Add(exec.Weight)
		execEntry, err := models.GetJournalEntry(ctx, exec.JournalEntryId)
		if err != nil {
			t.Fatalf("GetJournalEntry (execution %d): %v", exec.ID, err)
		}
		if entryNumbers[execEntry.EntryNumber] {
			t.Fatalf("entry number %s issued twice", execEntry.EntryNumber)
		}
		entryNumbers[execEntry.EntryNumber] = true
	}
	if !filled.Equal(closed.ExecutedWeight) {
		t.Fatalf("execution weights sum to %s but order executed %s", filled, closed.ExecutedWeight)
	}

	// a third fill must be rejected
	if _, err := models.ExecuteWeightClosing(ctx, order.ID, decimal.RequireFromString("0.500"), decimal.RequireFromString("85.00"), models.PriceSourceManual); err == nil {
		t.Fatalf("expected capacity error on closed order")
	} else if capErr, ok := err.(*utils.CapacityError); !ok {
		t.Fatalf("expected *utils.CapacityError, got %T: %v", err, err)
	} else if capErr.Scope != "weight closing order" {
		t.Fatalf("unexpected capacity scope %q", capErr.Scope)
	}

	// the memo obligation is fully relieved
	partySnap, err := models.GetPartyBalanceSnapshot(ctx, customer.ID)
	if err != nil {
		t.Fatalf("GetPartyBalanceSnapshot: %v", err)
	}
	if !partySnap.Weights[models.Karat21].IsZero() {
		t.Fatalf("expected relieved 21k memo balance, got %s", partySnap.Weights[models.Karat21])
	}

	// soft delete the first fill's journal: the reason is mandatory, the
	// audit record is written, and the 6g relief drops out of balances
	if _, err := models.SoftDeleteJournalEntry(ctx, exec1.JournalEntryId, ""); err == nil {
		t.Fatalf("expected soft delete without reason to fail")
	}
	deleted, err := models.SoftDeleteJournalEntry(ctx, exec1.JournalEntryId, "posted against wrong fill")
	if err != nil {
		t.Fatalf("SoftDeleteJournalEntry: %v", err)
	}
	if !deleted.IsDeleted || deleted.DeletedBy != "Test" || deleted.DeletedReason != "posted against wrong fill" || deleted.DeletedAt == nil {
		t.Fatalf("deletion record incomplete: %+v", deleted)
	}
	if _, err := models.SoftDeleteJournalEntry(ctx, exec1.JournalEntryId, "again"); err == nil {
		t.Fatalf("expected double delete to fail")
	}
	afterDelete, err := models.GetPartyBalanceSnapshot(ctx, customer.ID)
	if err != nil {
		t.Fatalf("GetPartyBalanceSnapshot (after delete): %v", err)
	}
	if !afterDelete.Weights[models.Karat21].Equal(decimal.RequireFromString("6.000")) {
		t.Fatalf("expected 6.000 of 21k obligation back after delete, got %s", afterDelete.Weights[models.Karat21])
	}

	// restore reapplies the relief and records the actor
	restored, err := models.RestoreJournalEntry(ctx, exec1.JournalEntryId)
	if err != nil {
		t.Fatalf("RestoreJournalEntry: %v", err)
	}
	if restored.IsDeleted || restored.RestoredBy != "Test" || restored.RestoredAt == nil {
		t.Fatalf("restore record incomplete: %+v", restored)
	}
	afterRestore, err := models.GetPartyBalanceSnapshot(ctx, customer.ID)
	if err != nil {
		t.Fatalf("GetPartyBalanceSnapshot (after restore): %v", err)
	}
	if !afterRestore.Weights[models.Karat21].IsZero() {
		t.Fatalf("expected relieved 21k balance after restore, got %s", afterRestore.Weights[models.Karat21])
	}

	// cancel path: a fresh order cancels and goes terminal
	second, err := models.OpenWeightClosingOrder(ctx, &models.NewWeightClosingOrder{
		InvoiceId:     2,
		PartyId:       customer.ID,
		TotalWeight:   decimal.RequireFromString("3.000"),
		SnapshotPrice: snapshot,
	})
	if err != nil {
		t.Fatalf("OpenWeightClosingOrder (second): %v", err)
	}
	cancelled, err := models.CancelWeightClosingOrder(ctx, second.ID)
	if err != nil {
		t.Fatalf("CancelWeightClosingOrder: %v", err)
	}
	if cancelled.Status != models.WeightClosingStatusCancelled {
		t.Fatalf("expected Cancelled, got %s", cancelled.Status)
	}
	if _, err := models.ExecuteWeightClosing(ctx, second.ID, decimal.RequireFromString("1.000"), snapshot, models.PriceSourceManual); err == nil {
		t.Fatalf("expected cancelled order to reject executions")
	}
}

// mustMemoMirror returns the weight-memo mirror account id of a system
// account.
func mustMemoMirror(t *testing.T, ctx context.Context, sysCode string) int {
	t.Helper()
	businessId, _ := utils.GetBusinessIdFromContext(ctx)
	sysAccounts, err := models.GetSystemAccounts(businessId)
	if err != nil {
		t.Fatalf("GetSystemAccounts: %v", err)
	}
	account, err := models.GetAccount(ctx, sysAccounts[sysCode])
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if account.MirrorAccountId == 0 {
		t.Fatalf("account %s has no memo mirror", account.Code)
	}
	return account.MirrorAccountId
}
