package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/DevOwais28/Expense-Tracker/internal/middleware"
	"github.com/DevOwais28/Expense-Tracker/internal/models"
)

// PredictExpense takes either a list of rows or a single row.
func (h HandlerSet) PredictExpense(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		badRequest(c, err)
		return
	}

	var inputs []models.PredictionInput
	trimmed := bytes.TrimSpace(raw)
	switch {
	case len(trimmed) == 0:
	case trimmed[0] == '[':
		err = json.Unmarshal(trimmed, &inputs)
	case trimmed[0] == '{':
		var single models.PredictionInput
		if err = json.Unmarshal(trimmed, &single); err == nil {
			inputs = []models.PredictionInput{single}
		}
	default:
		err = errors.New("body must be a JSON object or array")
	}
	if err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.predictions.Predict(c.Request.Context(), middleware.CurrentIdentity(c), inputs)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type predictionHistoryItem struct {
	ID                string                   `json:"id"`
	PredictedForMonth string                   `json:"predictedForMonth"`
	Input             []models.PredictionInput `json:"input"`
	Predictions       []float64                `json:"predictions"`
	CreatedAt         time.Time                `json:"createdAt"`
}

func (h HandlerSet) PredictionHistory(c *gin.Context) {
	history, err := h.predictions.History(c.Request.Context(), middleware.CurrentIdentity(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	items := make([]predictionHistoryItem, 0, len(history))
	for _, p := range history {
		items = append(items, predictionHistoryItem{
			ID:                p.ID,
			PredictedForMonth: p.PredictedForMonth,
			Input:             p.Input,
			Predictions:       p.Result.Predictions,
			CreatedAt:         p.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "predictions": items})
}
