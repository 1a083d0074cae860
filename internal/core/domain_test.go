package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpenseInputComplete(t *testing.T) {
	assert.True(t, ExpenseInput{Title: "Lunch", Amount: "12.50", CategoryID: "c1"}.Complete())
	assert.False(t, ExpenseInput{Title: "Lunch", Amount: "12.50"}.Complete())
	assert.False(t, ExpenseInput{Title: "  ", Amount: "12.50", CategoryID: "c1"}.Complete())
	assert.False(t, ExpenseInput{Title: "Lunch", CategoryID: "c1"}.Complete())
}

func TestExpenseInputExpense(t *testing.T) {
	e, err := ExpenseInput{Title: " Lunch ", Amount: "12.50", CategoryID: "c1"}.Expense("u1")
	require.NoError(t, err)
	assert.Equal(t, "Lunch", e.Title)
	assert.Equal(t, "u1", e.UserID)
	assert.Equal(t, "c1", e.CategoryID)
	assert.Equal(t, "12.50", FormatAmount(e.Amount))

	_, err = ExpenseInput{Title: "Lunch", Amount: "-3", CategoryID: "c1"}.Expense("u1")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = ExpenseInput{Title: "Lunch", Amount: "3", CategoryID: "c1"}.Expense("")
	assert.ErrorIs(t, err, ErrMissingUser)
}

func TestCategoryInput(t *testing.T) {
	assert.False(t, CategoryInput{Name: "Food"}.Complete())
	assert.False(t, CategoryInput{Budget: "100"}.Complete())

	c, err := CategoryInput{Name: "Food", Budget: "100"}.Category("u1")
	require.NoError(t, err)
	assert.Equal(t, "Food", c.Name)
	assert.True(t, dec("100").Equal(c.Budget))

	_, err = CategoryInput{Name: "Food", Budget: "lots"}.Category("u1")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestUserDisplayName(t *testing.T) {
	assert.Equal(t, "Ada Lovelace", User{Email: "ada@example.com", FullName: "Ada Lovelace"}.DisplayName())
	assert.Equal(t, "ada@example.com", User{Email: "ada@example.com"}.DisplayName())
}

func TestFindHelpers(t *testing.T) {
	expenses := []Expense{{ID: "e1"}, {ID: "e2"}}
	got, ok := FindExpense(expenses, "e2")
	assert.True(t, ok)
	assert.Equal(t, "e2", got.ID)
	_, ok = FindExpense(expenses, "e3")
	assert.False(t, ok)

	_, ok = FindCategory(nil, "c1")
	assert.False(t, ok)
}
