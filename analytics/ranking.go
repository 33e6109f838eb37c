package analytics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"financeadvisor/models"
)

// SortKey selects the ranking metric for top/bottom product listings.
type SortKey string

const (
	SortByRevenue SortKey = "revenue"
	SortByUnits   SortKey = "units"
	SortByGrowth  SortKey = "growth"
	SortByMargin  SortKey = "margin"
)

// ValidSortKeys maps every accepted sort key string.
var ValidSortKeys = map[SortKey]bool{
	SortByRevenue: true,
	SortByUnits:   true,
	SortByGrowth:  true,
	SortByMargin:  true,
}

// RankingOptions narrow and shape a product ranking.
type RankingOptions struct {
	SortBy     SortKey
	Limit      int
	Bottom     bool
	Category   string
	MinRevenue decimal.Decimal
	// WindowStart/WindowEnd bound the growth split: growth compares the
	// second half of the window against the first half.
	WindowStart time.Time
	WindowEnd   time.Time
}

// RankProducts orders products by the chosen metric over the given
// events. Top listings sort descending, bottom listings ascending; ties
// always break by ascending product id so identical inputs produce
// identical output.
func RankProducts(events []models.SalesEvent, opts RankingOptions) ([]models.ProductRanking, error) {
	if opts.SortBy == "" {
		opts.SortBy = SortByRevenue
	}
	if !ValidSortKeys[opts.SortBy] {
		return nil, models.Errorf(models.ErrValidation, "unknown sortBy %q", opts.SortBy)
	}
	if opts.Limit <= 0 {
		opts.Limit = 10
	}

	type productAccum struct {
		ranking     models.ProductRanking
		firstHalf   decimal.Decimal
		secondHalf  decimal.Decimal
	}

	var splitAt time.Time
	if !opts.WindowStart.IsZero() && opts.WindowEnd.After(opts.WindowStart) {
		splitAt = opts.WindowStart.Add(opts.WindowEnd.Sub(opts.WindowStart) / 2)
	}

	accum := make(map[string]*productAccum)
	for _, e := range events {
		if !e.CountsTowardRevenue() {
			continue
		}
		if opts.Category != "" && e.Category != opts.Category {
			continue
		}

		p, ok := accum[e.ProductID]
		if !ok {
			p = &productAccum{
				ranking:    models.ProductRanking{ProductID: e.ProductID, Revenue: decimal.Zero, Margin: decimal.Zero},
				firstHalf:  decimal.Zero,
				secondHalf: decimal.Zero,
			}
			accum[e.ProductID] = p
		}
		p.ranking.Revenue = p.ranking.Revenue.Add(e.TotalAmount)
		p.ranking.Margin = p.ranking.Margin.Add(e.NetAmount)
		p.ranking.Units += e.Quantity
		p.ranking.OrderCount++

		if !splitAt.IsZero() {
			if e.Timestamp.Before(splitAt) {
				p.firstHalf = p.firstHalf.Add(e.TotalAmount)
			} else {
				p.secondHalf = p.secondHalf.Add(e.TotalAmount)
			}
		}
	}

	rankings := make([]models.ProductRanking, 0, len(accum))
	for _, p := range accum {
		if !opts.MinRevenue.IsZero() && p.ranking.Revenue.LessThan(opts.MinRevenue) {
			continue
		}
		p.ranking.Growth = growthPercent(p.firstHalf, p.secondHalf)
		rankings = append(rankings, p.ranking)
	}

	sort.Slice(rankings, func(i, j int) bool {
		cmp := compareBy(&rankings[i], &rankings[j], opts.SortBy)
		if cmp == 0 {
			return rankings[i].ProductID < rankings[j].ProductID
		}
		if opts.Bottom {
			return cmp < 0
		}
		return cmp > 0
	})

	if len(rankings) > opts.Limit {
		rankings = rankings[:opts.Limit]
	}
	for i := range rankings {
		rankings[i].Rank = i + 1
	}
	return rankings, nil
}

// compareBy orders two rankings on the chosen key: negative when a < b.
func compareBy(a, b *models.ProductRanking, key SortKey) int {
	switch key {
	case SortByUnits:
		return a.Units - b.Units
	case SortByGrowth:
		switch {
		case a.Growth < b.Growth:
			return -1
		case a.Growth > b.Growth:
			return 1
		default:
			return 0
		}
	case SortByMargin:
		return a.Margin.Cmp(b.Margin)
	default:
		return a.Revenue.Cmp(b.Revenue)
	}
}

// growthPercent expresses the second half-window's revenue relative to
// the first. A product with no first-half revenue grows 100% if it sold
// anything in the second half, else 0%.
func growthPercent(first, second decimal.Decimal) float64 {
	if first.IsZero() {
		if second.IsZero() {
			return 0
		}
		return 100
	}
	return second.Sub(first).Div(first).InexactFloat64() * 100
}
