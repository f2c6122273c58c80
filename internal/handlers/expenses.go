package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/DevOwais28/Expense-Tracker/internal/middleware"
	"github.com/DevOwais28/Expense-Tracker/internal/models"
	"github.com/DevOwais28/Expense-Tracker/internal/service"
)

type expenseResponse struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	Title         string    `json:"title"`
	Amount        float64   `json:"amount"`
	Category      string    `json:"category"`
	PaymentMethod string    `json:"paymentMethod"`
	Note          string    `json:"note,omitempty"`
	Date          time.Time `json:"date"`
	CreatedAt     time.Time `json:"createdAt"`
}

func expenseJSON(e models.Expense) expenseResponse {
	return expenseResponse{
		ID:            e.ID,
		UserID:        e.UserID,
		Title:         e.Title,
		Amount:        e.Amount,
		Category:      string(e.Category),
		PaymentMethod: string(e.PaymentMethod),
		Note:          e.Note,
		Date:          e.Date,
		CreatedAt:     e.CreatedAt,
	}
}

func expensesJSON(expenses []models.Expense) []expenseResponse {
	out := make([]expenseResponse, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, expenseJSON(e))
	}
	return out
}

type expenseRequest struct {
	Title         *string  `json:"title"`
	Amount        *float64 `json:"amount"`
	Category      *string  `json:"category"`
	PaymentMethod *string  `json:"paymentMethod"`
	Note          *string  `json:"note"`
	Date          *string  `json:"date"`
}

// parseDate accepts RFC 3339 timestamps and plain YYYY-MM-DD dates.
func parseDate(raw *string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, *raw); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("date %q is not RFC 3339 or YYYY-MM-DD", *raw)
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func (h HandlerSet) ListExpenses(c *gin.Context) {
	expenses, err := h.expenses.List(c.Request.Context(), middleware.CurrentIdentity(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "expenses": expensesJSON(expenses)})
}

func (h HandlerSet) CreateExpense(c *gin.Context) {
	var req expenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		badRequest(c, err)
		return
	}

	expense, err := h.expenses.Create(c.Request.Context(), middleware.CurrentIdentity(c), service.ExpenseInput{
		Title:         deref(req.Title),
		Amount:        deref(req.Amount),
		Category:      models.ExpenseCategory(deref(req.Category)),
		PaymentMethod: models.PaymentMethod(deref(req.PaymentMethod)),
		Note:          deref(req.Note),
		Date:          date,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Expense created successfully",
		"expense": expenseJSON(expense),
	})
}

func (h HandlerSet) GetExpense(c *gin.Context) {
	expense, err := h.expenses.Get(c.Request.Context(), middleware.CurrentIdentity(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "expense": expenseJSON(expense)})
}

func (h HandlerSet) UpdateExpense(c *gin.Context) {
	var req expenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		badRequest(c, err)
		return
	}

	patch := service.ExpensePatch{
		Title:  req.Title,
		Amount: req.Amount,
		Note:   req.Note,
		Date:   date,
	}
	if req.Category != nil {
		category := models.ExpenseCategory(*req.Category)
		patch.Category = &category
	}
	if req.PaymentMethod != nil {
		method := models.PaymentMethod(*req.PaymentMethod)
		patch.PaymentMethod = &method
	}

	expense, err := h.expenses.Update(c.Request.Context(), middleware.CurrentIdentity(c), c.Param("id"), patch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Expense updated successfully",
		"expense": expenseJSON(expense),
	})
}

func (h HandlerSet) DeleteExpense(c *gin.Context) {
	if err := h.expenses.Delete(c.Request.Context(), middleware.CurrentIdentity(c), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Expense deleted successfully"})
}

type summaryResponse struct {
	Month           string             `json:"month"`
	TotalExpense    float64            `json:"totalExpense"`
	CategoryTotals  map[string]float64 `json:"categoryTotals"`
	HighestCategory string             `json:"highestCategory,omitempty"`
	Count           int                `json:"count"`
}

func (h HandlerSet) MonthlySummary(c *gin.Context) {
	summary, err := h.expenses.MonthlySummary(c.Request.Context(), middleware.CurrentIdentity(c), c.Query("month"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	totals := make(map[string]float64, len(summary.CategoryTotals))
	for category, total := range summary.CategoryTotals {
		totals[string(category)] = total
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "summary": summaryResponse{
		Month:           summary.Month,
		TotalExpense:    summary.TotalExpense,
		CategoryTotals:  totals,
		HighestCategory: string(summary.HighestCategory),
		Count:           summary.Count,
	}})
}
