package models

import "time"

type ExpenseCategory string

const (
	CategoryFood          ExpenseCategory = "food"
	CategoryTravel        ExpenseCategory = "travel"
	CategoryBills         ExpenseCategory = "bills"
	CategoryShopping      ExpenseCategory = "shopping"
	CategoryHealth        ExpenseCategory = "health"
	CategoryEntertainment ExpenseCategory = "entertainment"
	CategoryOther         ExpenseCategory = "other"
)

func (c ExpenseCategory) Valid() bool {
	switch c {
	case CategoryFood, CategoryTravel, CategoryBills, CategoryShopping,
		CategoryHealth, CategoryEntertainment, CategoryOther:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentCash      PaymentMethod = "cash"
	PaymentCard      PaymentMethod = "card"
	PaymentBank      PaymentMethod = "bank"
	PaymentJazzCash  PaymentMethod = "jazzcash"
	PaymentEasyPaisa PaymentMethod = "easypaisa"
)

func (p PaymentMethod) Valid() bool {
	switch p {
	case PaymentCash, PaymentCard, PaymentBank, PaymentJazzCash, PaymentEasyPaisa:
		return true
	}
	return false
}

type Expense struct {
	ID            string
	UserID        string
	Title         string
	Amount        float64
	Category      ExpenseCategory
	PaymentMethod PaymentMethod
	Note          string
	Date          time.Time
	CreatedAt     time.Time
}

// ExpenseWithOwner is an expense joined with the owner's public fields,
// used by the admin listing.
type ExpenseWithOwner struct {
	Expense
	OwnerName  string
	OwnerEmail string
}

// MonthlySummary aggregates one user's expenses for a calendar month.
type MonthlySummary struct {
	UserID          string
	Month           string // YYYY-MM
	TotalExpense    float64
	CategoryTotals  map[ExpenseCategory]float64
	HighestCategory ExpenseCategory
	Count           int
}

type SystemStats struct {
	TotalUsers         int
	AdminUsers         int
	RegularUsers       int
	TotalExpenses      int
	TotalExpenseAmount float64
}
