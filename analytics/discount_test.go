package analytics

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"financeadvisor/models"
)

func TestSimulateDiscountIdentityAtZero(t *testing.T) {
	baseline := DiscountBaseline{
		ProductID: "prod-1",
		Price:     decimal.NewFromFloat(25.50),
		Volume:    40,
		UnitCost:  decimal.NewFromFloat(9.99),
	}

	sim, err := SimulateDiscount(baseline, 0, 0)
	require.NoError(t, err)

	// Zero discount and zero volume change must reproduce the baseline
	// exactly, not approximately.
	assert.True(t, sim.ProjectedPrice.Equal(sim.BaselinePrice))
	assert.True(t, sim.ProjectedRevenue.Equal(sim.BaselineRevenue))
	assert.True(t, sim.ProjectedMargin.Equal(sim.BaselineMargin))
	assert.False(t, sim.MarginBecomesNegative)
}

func TestSimulateDiscountProjection(t *testing.T) {
	baseline := DiscountBaseline{
		ProductID: "prod-1",
		Price:     decimal.NewFromInt(100),
		Volume:    10,
		UnitCost:  decimal.NewFromInt(60),
	}

	sim, err := SimulateDiscount(baseline, 20, 50)
	require.NoError(t, err)

	assert.True(t, sim.ProjectedPrice.Equal(decimal.NewFromInt(80)), "price %s", sim.ProjectedPrice)
	assert.True(t, sim.ProjectedVolume.Equal(decimal.NewFromInt(15)), "volume %s", sim.ProjectedVolume)
	assert.True(t, sim.ProjectedRevenue.Equal(decimal.NewFromInt(1200)), "revenue %s", sim.ProjectedRevenue)
	// Margin: (80-60) * 15 = 300, down from (100-60) * 10 = 400.
	assert.True(t, sim.ProjectedMargin.Equal(decimal.NewFromInt(300)), "margin %s", sim.ProjectedMargin)
	assert.True(t, sim.BaselineMargin.Equal(decimal.NewFromInt(400)))
	assert.False(t, sim.MarginBecomesNegative)
}

func TestSimulateDiscountFlagsNegativeMargin(t *testing.T) {
	baseline := DiscountBaseline{
		ProductID: "prod-1",
		Price:     decimal.NewFromInt(100),
		Volume:    10,
		UnitCost:  decimal.NewFromInt(90),
	}

	sim, err := SimulateDiscount(baseline, 20, 0)
	require.NoError(t, err)
	assert.True(t, sim.MarginBecomesNegative)
	assert.True(t, sim.ProjectedMargin.IsNegative())
}

func TestSimulateDiscountValidation(t *testing.T) {
	baseline := DiscountBaseline{ProductID: "prod-1", Price: decimal.NewFromInt(10), Volume: 5}

	_, err := SimulateDiscount(baseline, -5, 0)
	assert.True(t, models.IsKind(err, models.ErrValidation))

	_, err = SimulateDiscount(baseline, 150, 0)
	assert.True(t, models.IsKind(err, models.ErrValidation))

	_, err = SimulateDiscount(baseline, 10, -150)
	assert.True(t, models.IsKind(err, models.ErrValidation))
}

func TestBaselineFromEvents(t *testing.T) {
	ts := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	mk := func(orderID, productID string, qty int, unit float64, status models.PaymentStatus) models.SalesEvent {
		price := decimal.NewFromFloat(unit)
		total := price.Mul(decimal.NewFromInt(int64(qty)))
		return models.SalesEvent{
			OrderID: orderID, ProductID: productID, Quantity: qty,
			UnitPrice: price, TotalAmount: total, NetAmount: total,
			PaymentStatus: status, Timestamp: ts,
		}
	}

	events := []models.SalesEvent{
		mk("o1", "prod-1", 2, 10, models.PaymentCompleted),
		mk("o2", "prod-1", 3, 20, models.PaymentCompleted),
		mk("o3", "prod-1", 99, 5, models.PaymentPending),
		mk("o4", "prod-2", 7, 99, models.PaymentCompleted),
	}

	baseline := BaselineFromEvents("prod-1", events)
	assert.Equal(t, 5, baseline.Volume)
	// Volume-weighted: (2*10 + 3*20) / 5 = 16.
	assert.True(t, baseline.Price.Equal(decimal.NewFromInt(16)), "price %s", baseline.Price)
}

func TestBaselineFromEventsEmpty(t *testing.T) {
	baseline := BaselineFromEvents("prod-x", nil)
	assert.Zero(t, baseline.Volume)
	assert.True(t, baseline.Price.IsZero())
}
