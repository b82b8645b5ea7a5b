// Package currency converts amounts with the rate table kept in the
// record store.
package currency

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/garyjia/po-approval-route/internal/application/port"
)

// DefaultDecimalPlaces applies to currencies without a definition
const DefaultDecimalPlaces int32 = 2

// Converter implements port.CurrencyConverter.
//
// A rate is the number of currency units worth one unit of the reference
// currency, so converting from A to B multiplies by rate(B) / rate(A).
// A currency without a rate counts as rate 1.
type Converter struct {
	repo   port.CurrencyRepository
	logger *zap.Logger
}

// NewConverter creates a rate-table converter
func NewConverter(repo port.CurrencyRepository, logger *zap.Logger) *Converter {
	return &Converter{
		repo:   repo,
		logger: logger,
	}
}

// Convert converts amount and rounds it to the target currency's precision
func (c *Converter) Convert(ctx context.Context, amount decimal.Decimal, from, to string, companyID int64, at time.Time) (decimal.Decimal, error) {
	converted := amount
	if from != to {
		fromRate, err := c.rate(ctx, from, companyID, at)
		if err != nil {
			return decimal.Zero, err
		}
		toRate, err := c.rate(ctx, to, companyID, at)
		if err != nil {
			return decimal.Zero, err
		}
		converted = amount.Mul(toRate).Div(fromRate)
	}

	places, err := c.decimalPlaces(ctx, to)
	if err != nil {
		return decimal.Zero, err
	}

	return converted.Round(places), nil
}

func (c *Converter) rate(ctx context.Context, code string, companyID int64, at time.Time) (decimal.Decimal, error) {
	rate, err := c.repo.FindRate(ctx, code, companyID, at)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to look up %s rate: %w", code, err)
	}
	if rate == nil || !rate.Rate.IsPositive() {
		c.logger.Debug("No rate found, using 1",
			zap.String("currency", code),
			zap.Int64("company_id", companyID),
			zap.Time("at", at))
		return decimal.NewFromInt(1), nil
	}
	return rate.Rate, nil
}

func (c *Converter) decimalPlaces(ctx context.Context, code string) (int32, error) {
	currency, err := c.repo.GetCurrency(ctx, code)
	if err != nil {
		return 0, fmt.Errorf("failed to look up currency %s: %w", code, err)
	}
	if currency == nil {
		return DefaultDecimalPlaces, nil
	}
	return currency.DecimalPlaces, nil
}

var _ port.CurrencyConverter = (*Converter)(nil)
