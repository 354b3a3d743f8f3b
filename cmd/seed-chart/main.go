// seed-chart migrates the schema and seeds the base chart of accounts for a
// business. When SEED_BUSINESS_NAME is set and no business exists yet, one is
// created first.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-chart
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/asaalabbadi2-web/goldbooks_backend/config"
	"github.com/asaalabbadi2-web/goldbooks_backend/models"
	"github.com/asaalabbadi2-web/goldbooks_backend/utils"
	"gorm.io/gorm"
)

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	if err := models.MigrateTable(); err != nil {
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}

	var biz models.Business
	err := db.WithContext(ctx).Model(&models.Business{}).First(&biz).Error
	if err == gorm.ErrRecordNotFound {
		name := strings.TrimSpace(os.Getenv("SEED_BUSINESS_NAME"))
		if name == "" {
			fmt.Fprintln(os.Stderr, "no businesses found in DB. Set SEED_BUSINESS_NAME to create one, then rerun seed-chart.")
			os.Exit(2)
		}
		created, cerr := models.CreateBusiness(ctx, &models.NewBusiness{
			Name:  name,
			Email: strings.TrimSpace(os.Getenv("SEED_BUSINESS_EMAIL")),
		})
		if cerr != nil {
			fmt.Fprintf(os.Stderr, "failed to create business: %v\n", cerr)
			os.Exit(1)
		}
		biz = *created
		fmt.Printf("Created business: %q (id=%s)\n", biz.Name, biz.ID)
	} else if err != nil {
		fmt.Fprintf(os.Stderr, "failed to lookup business: %v\n", err)
		os.Exit(1)
	}

	ctx = utils.SetBusinessIdInContext(ctx, biz.ID.String())
	ctx = utils.SetUserNameInContext(ctx, "Seed")

	if err := models.SeedChartOfAccounts(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to seed chart of accounts: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Seeded chart of accounts for business %q (id=%s)\n", biz.Name, biz.ID)
}
