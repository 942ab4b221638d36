package core

// TypeTotal aggregates total and count for one transaction type.
type TypeTotal struct {
	Total Money `json:"total"`
	Count int64 `json:"count"`
}

// Summary is the per-user income/expense overview for a date range.
type Summary struct {
	Income    TypeTotal `json:"income"`
	Expenses  TypeTotal `json:"expenses"`
	NetAmount Money     `json:"netAmount"`
}

// Net recomputes the net amount from the income and expense totals.
func (s *Summary) Net() Money {
	return Money{Cents: s.Income.Total.Cents - s.Expenses.Total.Cents}
}

// CategoryBreakdown is one row of the per-category report for a range,
// ordered by descending total.
type CategoryBreakdown struct {
	CategoryID   int64  `json:"categoryId"`
	CategoryName string `json:"categoryName"`
	Total        Money  `json:"total"`
	Count        int64  `json:"count"`
	Average      Money  `json:"average"`
}
