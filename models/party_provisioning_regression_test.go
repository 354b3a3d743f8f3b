package models_test

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/asaalabbadi2-web/goldbooks_backend/config"
	"github.com/asaalabbadi2-web/goldbooks_backend/models"
	"github.com/asaalabbadi2-web/goldbooks_backend/utils"
)

// Provisioning a party must allocate a financial account under the category
// group, mirror it into the weight-memo tree and link the pair symmetrically,
// and repeated calls must return the same pair.
func TestPartyProvisioningCreatesMirroredPair(t *testing.T) {
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
		Name:  "Mirror Jewellers",
		Email: "owner@mirror.test",
	})
	if err != nil {
		t.Fatalf("CreateBusiness: %v", err)
	}
	ctx = utils.SetBusinessIdInContext(ctx, biz.ID.String())

	if err := models.SeedChartOfAccounts(ctx); err != nil {
		t.Fatalf("SeedChartOfAccounts: %v", err)
	}

	customer, err := models.CreateParty(ctx, &models.NewParty{
		Name:     "Aisha Goldsmith",
		Category: models.PartyCategoryCustomer,
	})
	if err != nil {
		t.Fatalf("CreateParty: %v", err)
	}

	financial, memo, err := models.EnsurePartyAccounts(ctx, customer.ID)
	if err != nil {
		t.Fatalf("EnsurePartyAccounts: %v", err)
	}

	// first customer slot under the Customers group (120 -> 1200..1280)
	if financial.Code != "1200" {
		t.Fatalf("expected financial code 1200, got %s", financial.Code)
	}
	if memo.Code != models.MemoChildNumber(financial.Code) {
		t.Fatalf("expected memo code %s, got %s", models.MemoChildNumber(financial.Code), memo.Code)
	}
	if memo.UnitKind != models.UnitKindWeight {
		t.Fatalf("memo account must be weight-only, got %s", memo.UnitKind)
	}
	if financial.MirrorAccountId != memo.ID || memo.MirrorAccountId != financial.ID {
		t.Fatalf("mirror links are not symmetric: financial.mirror=%d memo.mirror=%d", financial.MirrorAccountId, memo.MirrorAccountId)
	}

	// memo ancestors mirror the financial parent chain
	memoParent, err := models.GetAccount(ctx, memo.ParentAccountId)
	if err != nil {
		t.Fatalf("fetch memo parent: %v", err)
	}
	if memoParent.Code != "7120" {
		t.Fatalf("expected memo parent 7120, got %s", memoParent.Code)
	}

	// idempotent: a second call returns the same pair
	financial2, memo2, err := models.EnsurePartyAccounts(ctx, customer.ID)
	if err != nil {
		t.Fatalf("EnsurePartyAccounts (repeat): %v", err)
	}
	if financial2.ID != financial.ID || memo2.ID != memo.ID {
		t.Fatalf("provisioning is not idempotent: got (%d,%d) then (%d,%d)", financial.ID, memo.ID, financial2.ID, memo2.ID)
	}

	// a second customer packs the next gap
	second, err := models.CreateParty(ctx, &models.NewParty{
		Name:     "Bashir Traders",
		Category: models.PartyCategoryCustomer,
	})
	if err != nil {
		t.Fatalf("CreateParty (second): %v", err)
	}
	secondFin, _, err := models.EnsurePartyAccounts(ctx, second.ID)
	if err != nil {
		t.Fatalf("EnsurePartyAccounts (second): %v", err)
	}
	if secondFin.Code != "1210" {
		t.Fatalf("expected second financial code 1210, got %s", secondFin.Code)
	}

	// suppliers land under their own group
	supplier, err := models.CreateParty(ctx, &models.NewParty{
		Name:     "Dahab Refinery",
		Category: models.PartyCategorySupplier,
	})
	if err != nil {
		t.Fatalf("CreateParty (supplier): %v", err)
	}
	supFin, supMemo, err := models.EnsurePartyAccounts(ctx, supplier.ID)
	if err != nil {
		t.Fatalf("EnsurePartyAccounts (supplier): %v", err)
	}
	if supFin.Code != "2100" {
		t.Fatalf("expected supplier financial code 2100, got %s", supFin.Code)
	}
	if supMemo.Code != "72100" {
		t.Fatalf("expected supplier memo code 72100, got %s", supMemo.Code)
	}
}
