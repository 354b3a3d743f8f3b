package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/asaalabbadi2-web/goldbooks_backend/config"
	"github.com/asaalabbadi2-web/goldbooks_backend/models"
	"github.com/asaalabbadi2-web/goldbooks_backend/utils"
	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const weightClosingLockKey = "weight-closing-workflow-lock"

// RunWeightClosing sweeps every business with open weight closing orders and
// fills each remainder at the provider's market price. A redis lock keeps the
// sweep single-flight across runner replicas; order-level failures are logged
// and skipped so one bad order cannot stall the rest.
func RunWeightClosing(ctx context.Context, provider PriceProvider) error {
	logger := config.GetLogger()

	locker := config.GetRedisLock()
	if locker != nil {
		lock, err := locker.Obtain(ctx, weightClosingLockKey, 10*time.Minute, nil)
		if errors.Is(err, redislock.ErrNotObtained) {
			logger.Info("weight closing sweep already running elsewhere, skipping")
			return nil
		}
		if err != nil {
			return err
		}
		defer lock.Release(ctx)
	}

	businessIds, err := models.ListBusinessIdsWithOpenOrders(ctx)
	if err != nil {
		return err
	}

	for _, businessId := range businessIds {
		bizCtx := utils.SetBusinessIdInContext(ctx, businessId)
		bizCtx = utils.SetUserNameInContext(bizCtx, "System")
		bizCtx = utils.SetCorrelationIdInContext(bizCtx, uuid.NewString())

		if err := runWeightClosingForBusiness(bizCtx, provider); err != nil {
			config.LogError(logger, "workflow", "RunWeightClosing", "business sweep failed", map[string]interface{}{
				"business_id": businessId,
			}, err)
		}
	}
	return nil
}

func runWeightClosingForBusiness(ctx context.Context, provider PriceProvider) error {
	logger := config.GetLogger()

	orders, err := models.GetOpenWeightClosingOrders(ctx)
	if err != nil {
		return err
	}

	for _, order := range orders {
		price, err := provider.PricePerGram(ctx, order.MainKarat)
		if err != nil {
			config.LogError(logger, "workflow", "runWeightClosingForBusiness", "no price for order", map[string]interface{}{
				"order_id": order.ID,
				"karat":    order.MainKarat.String(),
			}, err)
			continue
		}

		execution, err := models.ExecuteWeightClosing(ctx, order.ID, order.RemainingWeight, price, models.PriceSourceMarket)
		if err != nil {
			config.LogError(logger, "workflow", "runWeightClosingForBusiness", "execution failed", map[string]interface{}{
				"order_id": order.ID,
				"weight":   order.RemainingWeight.String(),
			}, err)
			continue
		}

		logger.WithFields(logrus.Fields{
			"order_id":         order.ID,
			"execution_id":     execution.ID,
			"weight":           execution.Weight.String(),
			"price_per_gram":   execution.PricePerGram.String(),
			"difference_value": execution.DifferenceValue.String(),
			"journal_entry_id": execution.JournalEntryId,
		}).Info("weight closing order filled")
	}
	return nil
}
