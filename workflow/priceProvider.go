package workflow

import (
	"context"
	"fmt"

	"github.com/asaalabbadi2-web/goldbooks_backend/config"
	"github.com/asaalabbadi2-web/goldbooks_backend/models"
	"github.com/shopspring/decimal"
)

// PriceProvider supplies the current gold price per gram for a karat grade.
type PriceProvider interface {
	PricePerGram(ctx context.Context, karat models.Karat) (decimal.Decimal, error)
}

// ManualPriceProvider serves fixed prices, mainly for tests and back-office
// corrections.
type ManualPriceProvider struct {
	Prices map[models.Karat]decimal.Decimal
}

func (p *ManualPriceProvider) PricePerGram(ctx context.Context, karat models.Karat) (decimal.Decimal, error) {
	price, ok := p.Prices[karat]
	if !ok || !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("no manual price configured for %s", karat)
	}
	return price, nil
}

// RedisPriceProvider reads the market feed that the price ingestion process
// writes under gold-price:<karat>.
type RedisPriceProvider struct{}

func (p *RedisPriceProvider) PricePerGram(ctx context.Context, karat models.Karat) (decimal.Decimal, error) {
	value, found, err := config.GetRedisValue(fmt.Sprintf("gold-price:%s", karat))
	if err != nil {
		return decimal.Zero, err
	}
	if !found {
		return decimal.Zero, fmt.Errorf("no market price available for %s", karat)
	}
	price, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("malformed market price for %s: %w", karat, err)
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("non-positive market price for %s", karat)
	}
	return price, nil
}
