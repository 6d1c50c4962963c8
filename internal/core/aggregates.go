package core

// Aggregate output shapes. These are the only values the narrative layer and
// API report endpoints ever see; they are produced exclusively by the
// aggregation engine.

type (
	// MonthlyTotals sums income and expense across all snapshots of one month.
	MonthlyTotals struct {
		TotalIncome  float64 `json:"total_income"`
		TotalExpense float64 `json:"total_expense"`
		NetSavings   float64 `json:"net_savings"`
	}

	// CategoryAggregate is a transaction-level category breakdown row. It is
	// informational only and never feeds balance totals.
	CategoryAggregate struct {
		Category string  `json:"category"`
		Total    float64 `json:"total"`
		Count    int     `json:"count"`
	}

	// MonthDelta compares one month against the preceding one. Percentage
	// change is delta/previous*100 when the previous value is positive and 0
	// otherwise; the zero fallback is a division guard, not arithmetic truth.
	MonthDelta struct {
		IncomeDelta       float64 `json:"income_delta"`
		ExpenseDelta      float64 `json:"expense_delta"`
		NetWorthDelta     float64 `json:"net_worth_delta"`
		IncomePctChange   float64 `json:"income_pct_change"`
		ExpensePctChange  float64 `json:"expense_pct_change"`
		NetWorthPctChange float64 `json:"net_worth_pct_change"`
		PreviousYear      int     `json:"previous_year"`
		PreviousMonth     int     `json:"previous_month"`
	}

	// Anomaly flags a category whose current-month spend magnitude exceeds a
	// multiple of its trailing six-month average.
	Anomaly struct {
		Category      string  `json:"category"`
		CurrentAmount float64 `json:"current_amount"`
		AverageAmount float64 `json:"average_amount"`
		DeviationPct  float64 `json:"deviation_pct"`
		IsHigh        bool    `json:"is_high"`
	}

	// MonthBreakdown is one row of a yearly summary.
	MonthBreakdown struct {
		Month      int     `json:"month"`
		Income     float64 `json:"income"`
		Expense    float64 `json:"expense"`
		NetSavings float64 `json:"net_savings"`
		NetWorth   float64 `json:"net_worth"`
	}

	YearlySummary struct {
		Year                 int                 `json:"year"`
		TotalIncome          float64             `json:"total_income"`
		TotalExpense         float64             `json:"total_expense"`
		NetSavings           float64             `json:"net_savings"`
		MonthlyData          []MonthBreakdown    `json:"monthly_data"`
		TopExpenseCategories []CategoryAggregate `json:"top_expense_categories"`
	}
)
