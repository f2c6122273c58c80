package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/DevOwais28/Expense-Tracker/internal/middleware"
	"github.com/DevOwais28/Expense-Tracker/internal/models"
)

func (h HandlerSet) AdminListUsers(c *gin.Context) {
	users, err := h.admin.ListUsers(c.Request.Context(), middleware.CurrentIdentity(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	items := make([]map[string]interface{}, 0, len(users))
	for _, u := range users {
		items = append(items, map[string]interface{}{
			"id":        u.ID,
			"email":     u.Email,
			"name":      u.DisplayName,
			"role":      u.Role,
			"avatar":    u.Avatar(),
			"createdAt": u.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "users": items})
}

func (h HandlerSet) AdminDeleteUser(c *gin.Context) {
	if err := h.admin.DeleteUser(c.Request.Context(), middleware.CurrentIdentity(c), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "User and their expenses deleted successfully"})
}

type changeRoleRequest struct {
	Role string `json:"role"`
}

func (h HandlerSet) AdminChangeRole(c *gin.Context) {
	var req changeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.admin.ChangeRole(c.Request.Context(), middleware.CurrentIdentity(c), c.Param("id"), models.UserRole(req.Role))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "User role updated successfully",
		"user":    userJSON(user),
	})
}

func (h HandlerSet) AdminStats(c *gin.Context) {
	stats, err := h.admin.Stats(c.Request.Context(), middleware.CurrentIdentity(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "stats": gin.H{
		"totalUsers":         stats.TotalUsers,
		"adminUsers":         stats.AdminUsers,
		"regularUsers":       stats.RegularUsers,
		"totalExpenses":      stats.TotalExpenses,
		"totalExpenseAmount": stats.TotalExpenseAmount,
	}})
}

func (h HandlerSet) AdminListExpenses(c *gin.Context) {
	expenses, err := h.expenses.ListAll(c.Request.Context(), middleware.CurrentIdentity(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	type ownedExpense struct {
		expenseResponse
		User gin.H `json:"user"`
	}
	items := make([]ownedExpense, 0, len(expenses))
	for _, e := range expenses {
		items = append(items, ownedExpense{
			expenseResponse: expenseJSON(e.Expense),
			User:            gin.H{"name": e.OwnerName, "email": e.OwnerEmail},
		})
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "expenses": items})
}
