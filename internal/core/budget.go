package core

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// CategoryProgress is the derived budget state of one category.
type CategoryProgress struct {
	Category   Category
	Spend      decimal.Decimal
	Percent    decimal.Decimal // bar width, 0..100
	OverBudget bool
}

// Width is the progress bar width as a CSS percentage value.
func (p CategoryProgress) Width() string {
	return p.Percent.StringFixed(2)
}

// Spend sums the amounts of expenses assigned to categoryID.
func Spend(categoryID string, expenses []Expense) decimal.Decimal {
	total := decimal.Zero
	if categoryID == "" {
		return total
	}
	for _, e := range expenses {
		if e.CategoryID == categoryID {
			total = total.Add(e.Amount)
		}
	}
	return total
}

// OverBudget is strict: spend equal to budget is not over.
func OverBudget(spend, budget decimal.Decimal) bool {
	return spend.GreaterThan(budget)
}

// ProgressPercent is min(spend/budget*100, 100), and 0 for a non-positive budget.
func ProgressPercent(spend, budget decimal.Decimal) decimal.Decimal {
	if !budget.IsPositive() {
		return decimal.Zero
	}
	pct := spend.Div(budget).Mul(hundred)
	if pct.IsNegative() {
		return decimal.Zero
	}
	if pct.GreaterThan(hundred) {
		return hundred
	}
	return pct
}

// BudgetProgress derives progress for every category, in category order.
func BudgetProgress(categories []Category, expenses []Expense) []CategoryProgress {
	out := make([]CategoryProgress, 0, len(categories))
	for _, c := range categories {
		spend := Spend(c.ID, expenses)
		out = append(out, CategoryProgress{
			Category:   c,
			Spend:      spend,
			Percent:    ProgressPercent(spend, c.Budget),
			OverBudget: OverBudget(spend, c.Budget),
		})
	}
	return out
}

// Total sums all expense amounts.
func Total(expenses []Expense) decimal.Decimal {
	total := decimal.Zero
	for _, e := range expenses {
		total = total.Add(e.Amount)
	}
	return total
}
