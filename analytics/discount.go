package analytics

import (
	"github.com/shopspring/decimal"

	"financeadvisor/models"
)

// DiscountBaseline is the observed price/volume the simulation starts
// from, typically derived from the product's completed events in the
// requested window. UnitCost may be zero when no cost basis is known, in
// which case margin equals revenue.
type DiscountBaseline struct {
	ProductID string
	Price     decimal.Decimal
	Volume    int
	UnitCost  decimal.Decimal
}

var oneHundred = decimal.NewFromInt(100)

// SimulateDiscount models the revenue and margin effect of discounting a
// product, using a caller-supplied volume elasticity assumption. With a
// zero discount and zero volume increase the projection reproduces the
// baseline exactly.
func SimulateDiscount(baseline DiscountBaseline, discountPercent, volumeIncreasePercent float64) (*models.DiscountSimulation, error) {
	if discountPercent < 0 || discountPercent > 100 {
		return nil, models.Errorf(models.ErrValidation, "discountPercent must be in [0, 100], got %g", discountPercent)
	}
	if volumeIncreasePercent < -100 {
		return nil, models.Errorf(models.ErrValidation, "expectedVolumeIncrease cannot drop volume below zero, got %g", volumeIncreasePercent)
	}
	if baseline.Volume < 0 {
		return nil, models.Errorf(models.ErrValidation, "baseline volume cannot be negative, got %d", baseline.Volume)
	}

	baseVolume := decimal.NewFromInt(int64(baseline.Volume))
	baseRevenue := baseline.Price.Mul(baseVolume)
	baseMargin := baseRevenue.Sub(baseline.UnitCost.Mul(baseVolume))

	priceFactor := decimal.NewFromInt(1).Sub(decimal.NewFromFloat(discountPercent).Div(oneHundred))
	volumeFactor := decimal.NewFromInt(1).Add(decimal.NewFromFloat(volumeIncreasePercent).Div(oneHundred))

	newPrice := baseline.Price.Mul(priceFactor)
	newVolume := baseVolume.Mul(volumeFactor)
	newRevenue := newPrice.Mul(newVolume)
	newMargin := newRevenue.Sub(baseline.UnitCost.Mul(newVolume))

	return &models.DiscountSimulation{
		ProductID:             baseline.ProductID,
		DiscountPercent:       discountPercent,
		VolumeIncreasePercent: volumeIncreasePercent,
		BaselinePrice:         baseline.Price,
		BaselineVolume:        baseline.Volume,
		BaselineRevenue:       baseRevenue,
		BaselineMargin:        baseMargin,
		ProjectedPrice:        newPrice,
		ProjectedVolume:       newVolume,
		ProjectedRevenue:      newRevenue,
		ProjectedMargin:       newMargin,
		MarginBecomesNegative: newMargin.IsNegative(),
	}, nil
}

// BaselineFromEvents derives a product's baseline price and volume from
// its completed events in a window. The price is the volume-weighted
// average unit price; volume is total units sold.
func BaselineFromEvents(productID string, events []models.SalesEvent) DiscountBaseline {
	baseline := DiscountBaseline{ProductID: productID, Price: decimal.Zero, UnitCost: decimal.Zero}

	var priceSum decimal.Decimal
	for _, e := range events {
		if e.ProductID != productID || !e.CountsTowardRevenue() {
			continue
		}
		qty := decimal.NewFromInt(int64(e.Quantity))
		priceSum = priceSum.Add(e.UnitPrice.Mul(qty))
		baseline.Volume += e.Quantity
	}
	if baseline.Volume > 0 {
		baseline.Price = priceSum.Div(decimal.NewFromInt(int64(baseline.Volume)))
	}
	return baseline
}
