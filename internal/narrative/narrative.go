// Package narrative turns aggregation output into plain-language summaries.
// The generated documents are what downstream search indexes embed; they are
// built only from aggregate figures, never from raw snapshot or transaction
// rows, so every sentence is traceable to a specific aggregate call.
package narrative

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"finassist/internal/aggregate"
	"finassist/internal/core"
)

// MinCategoryAmount is the spend threshold below which no yearly category
// summary is generated.
const MinCategoryAmount = 100.0

const (
	TypeMonthlySummary  = "monthly_summary"
	TypeCategorySummary = "category_summary"
	TypeAnomaly         = "anomaly"
	TypeYearlyOverview  = "yearly_overview"
)

// Document is one embeddable narrative.
type Document struct {
	Text     string `json:"text"`
	Type     string `json:"type"`
	Year     int    `json:"year"`
	Month    int    `json:"month,omitempty"`
	Category string `json:"category,omitempty"`
}

type Generator struct {
	engine *aggregate.Engine
}

func NewGenerator(engine *aggregate.Engine) *Generator {
	return &Generator{engine: engine}
}

// MonthlySummary narrates one month's totals and its movement against the
// previous month. Nil when the month has no income and no expenses.
func (g *Generator) MonthlySummary(ctx context.Context, p core.Period) *Document {
	totals := g.engine.MonthlyTotals(ctx, p)
	if totals.TotalIncome == 0 && totals.TotalExpense == 0 {
		return nil
	}

	netWorth := g.engine.NetWorth(ctx, p)
	delta := g.engine.MonthOverMonthDelta(ctx, p)

	var b strings.Builder
	fmt.Fprintf(&b, "In %s %d, total expenses were €%.2f and total income was €%.2f, resulting in net savings of €%.2f.",
		monthName(p.Month), p.Year, abs(totals.TotalExpense), totals.TotalIncome, totals.NetSavings)

	prevName := monthName(delta.PreviousMonth)
	switch {
	case delta.ExpenseDelta > 0:
		fmt.Fprintf(&b, " Expenses increased by €%.2f (%.1f%%) compared to %s.",
			delta.ExpenseDelta, delta.ExpensePctChange, prevName)
	case delta.ExpenseDelta < 0:
		fmt.Fprintf(&b, " Expenses decreased by €%.2f (%.1f%%) compared to %s.",
			abs(delta.ExpenseDelta), abs(delta.ExpensePctChange), prevName)
	}

	switch {
	case delta.NetWorthDelta > 0:
		fmt.Fprintf(&b, " Net worth increased by €%.2f during the month.", delta.NetWorthDelta)
	case delta.NetWorthDelta < 0:
		fmt.Fprintf(&b, " Net worth decreased by €%.2f during the month.", abs(delta.NetWorthDelta))
	}

	fmt.Fprintf(&b, " Month-end net worth was €%.2f.", netWorth)

	return &Document{
		Text:  b.String(),
		Type:  TypeMonthlySummary,
		Year:  p.Year,
		Month: p.Month,
	}
}

// CategorySummary narrates one category's yearly spend, its peak month and
// its share of total spending. Nil when the category has no activity.
func (g *Generator) CategorySummary(ctx context.Context, year int, category string) *Document {
	all := g.engine.CategoryAggregates(ctx, year, nil)

	var found *core.CategoryAggregate
	for i := range all {
		if strings.EqualFold(all[i].Category, category) {
			found = &all[i]
			break
		}
	}
	if found == nil || found.Total == 0 {
		return nil
	}

	var (
		peakMonth  int
		peakAmount float64
	)
	for month := 1; month <= 12; month++ {
		m := month
		for _, agg := range g.engine.CategoryAggregates(ctx, year, &m) {
			if strings.EqualFold(agg.Category, category) && abs(agg.Total) > peakAmount {
				peakAmount = abs(agg.Total)
				peakMonth = month
			}
		}
	}

	var totalExpenses float64
	for _, agg := range all {
		if agg.Total < 0 {
			totalExpenses += abs(agg.Total)
		}
	}
	var share float64
	if totalExpenses > 0 {
		share = abs(found.Total) / totalExpenses * 100
	}

	var b strings.Builder
	fmt.Fprintf(&b, "In %d, the %s category accounted for €%.2f in expenses", year, found.Category, abs(found.Total))
	if peakMonth > 0 {
		fmt.Fprintf(&b, ", with a peak in %s (€%.2f)", monthName(peakMonth), peakAmount)
	}
	fmt.Fprintf(&b, ". This category represents %.1f%% of total yearly spending.", share)

	return &Document{
		Text:     b.String(),
		Type:     TypeCategorySummary,
		Year:     year,
		Category: found.Category,
	}
}

// AnomalySummary narrates the month's spending anomalies, at most three,
// ordered by deviation. Nil when nothing was flagged.
func (g *Generator) AnomalySummary(ctx context.Context, p core.Period) *Document {
	anomalies := g.engine.DetectAnomalies(ctx, p, aggregate.DefaultAnomalyThreshold)
	if len(anomalies) == 0 {
		return nil
	}

	var b strings.Builder
	if len(anomalies) >= 3 {
		totals := g.engine.MonthlyTotals(ctx, p)
		fmt.Fprintf(&b, "%s %d showed unusually high spending (€%.2f total)",
			monthName(p.Month), p.Year, abs(totals.TotalExpense))
	} else {
		fmt.Fprintf(&b, "%s %d had notable spending anomalies", monthName(p.Month), p.Year)
	}

	sorted := make([]core.Anomaly, len(anomalies))
	copy(sorted, anomalies)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].DeviationPct > sorted[j].DeviationPct
	})
	if len(sorted) > 3 {
		sorted = sorted[:3]
	}

	descriptions := make([]string, 0, len(sorted))
	for _, a := range sorted {
		descriptions = append(descriptions,
			fmt.Sprintf("%s (€%.2f, %.0f%% above average)", a.Category, abs(a.CurrentAmount), a.DeviationPct))
	}
	b.WriteString(", driven by ")
	b.WriteString(strings.Join(descriptions, ", "))
	b.WriteString(".")

	return &Document{
		Text:  b.String(),
		Type:  TypeAnomaly,
		Year:  p.Year,
		Month: p.Month,
	}
}

// YearlyOverview narrates the year: totals, largest categories, best and
// worst months. Nil when the year has no activity.
func (g *Generator) YearlyOverview(ctx context.Context, year int) *Document {
	summary := g.engine.YearlySummary(ctx, year)
	if summary.TotalIncome == 0 && summary.TotalExpense == 0 {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "In %d, total income was €%.2f and total expenses were €%.2f, resulting in net savings of €%.2f.",
		year, summary.TotalIncome, abs(summary.TotalExpense), summary.NetSavings)

	if len(summary.TopExpenseCategories) > 0 {
		top := summary.TopExpenseCategories
		if len(top) > 3 {
			top = top[:3]
		}
		descriptions := make([]string, 0, len(top))
		for _, c := range top {
			descriptions = append(descriptions, fmt.Sprintf("%s (€%.2f)", c.Category, abs(c.Total)))
		}
		fmt.Fprintf(&b, " The largest expense categories were %s.", strings.Join(descriptions, ", "))
	}

	best, worst := bestAndWorstMonths(summary.MonthlyData)
	if best != nil {
		fmt.Fprintf(&b, " The best month was %s with net savings of €%.2f.",
			monthName(best.Month), best.NetSavings)
	}
	if worst != nil && (best == nil || worst.Month != best.Month) {
		fmt.Fprintf(&b, " %s had the lowest savings (€%.2f).", monthName(worst.Month), worst.NetSavings)
	}

	return &Document{
		Text: b.String(),
		Type: TypeYearlyOverview,
		Year: year,
	}
}

// AllDocuments generates the full narrative set for a year: monthly
// summaries, yearly category summaries above the spend threshold, and
// anomaly summaries.
func (g *Generator) AllDocuments(ctx context.Context, year int) []Document {
	var docs []Document

	for month := 1; month <= 12; month++ {
		if doc := g.MonthlySummary(ctx, core.Period{Year: year, Month: month}); doc != nil {
			docs = append(docs, *doc)
		}
	}

	for _, cat := range g.engine.CategoryAggregates(ctx, year, nil) {
		if cat.Total < 0 && abs(cat.Total) > MinCategoryAmount {
			if doc := g.CategorySummary(ctx, year, cat.Category); doc != nil {
				docs = append(docs, *doc)
			}
		}
	}

	for month := 1; month <= 12; month++ {
		if doc := g.AnomalySummary(ctx, core.Period{Year: year, Month: month}); doc != nil {
			docs = append(docs, *doc)
		}
	}

	return docs
}

func bestAndWorstMonths(monthly []core.MonthBreakdown) (best, worst *core.MonthBreakdown) {
	for i := range monthly {
		m := &monthly[i]
		if m.NetSavings == 0 {
			continue
		}
		if best == nil || m.NetSavings > best.NetSavings {
			best = m
		}
		if worst == nil || m.NetSavings < worst.NetSavings {
			worst = m
		}
	}
	return best, worst
}

func monthName(month int) string {
	if month < 1 || month > 12 {
		return "unknown"
	}
	return time.Month(month).String()
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
