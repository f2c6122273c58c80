package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/DevOwais28/Expense-Tracker/internal/access"
	"github.com/DevOwais28/Expense-Tracker/internal/ids"
	"github.com/DevOwais28/Expense-Tracker/internal/models"
)

const (
	maxPredictionRows = 100
	historyLimit      = 20
)

// Predictor is satisfied by prediction.Client.
type Predictor interface {
	Predict(ctx context.Context, inputs []models.PredictionInput) (models.PredictionResult, string)
}

type PredictionService struct {
	predictor   Predictor
	predictions PredictionStore
	log         zerolog.Logger
	now         func() time.Time
}

func NewPredictionService(predictor Predictor, predictions PredictionStore, log zerolog.Logger) *PredictionService {
	return &PredictionService{predictor: predictor, predictions: predictions, log: log, now: time.Now}
}

// Predict forwards inputs to the forecasting service. Upstream failures never
// surface; the caller receives the labelled fallback instead.
func (s *PredictionService) Predict(ctx context.Context, identity models.Identity, inputs []models.PredictionInput) (models.PredictionResult, error) {
	if err := access.Authorize(identity, access.Create, access.Owned(identity.UserID)); err != nil {
		return models.PredictionResult{}, err
	}
	if len(inputs) > maxPredictionRows {
		return models.PredictionResult{}, invalid("expenseData", "has too many rows")
	}
	for _, in := range inputs {
		if in.Month < 0 || in.Month > 12 || in.Day < 0 || in.Day > 31 {
			return models.PredictionResult{}, invalid("expenseData", "contains an invalid date")
		}
	}

	result, source := s.predictor.Predict(ctx, inputs)
	if result.Fallback {
		return result, nil
	}

	record := models.Prediction{
		ID:                ids.New(),
		UserID:            identity.UserID,
		Input:             inputs,
		Result:            result,
		PredictedForMonth: s.targetMonth(inputs),
		CreatedAt:         s.now().UTC(),
	}
	if err := s.predictions.Create(ctx, record); err != nil {
		s.log.Error().Err(err).Str("user_id", identity.UserID).Str("source", source).Msg("store prediction failed")
	}
	return result, nil
}

func (s *PredictionService) History(ctx context.Context, identity models.Identity) ([]models.Prediction, error) {
	if err := access.Authorize(identity, access.ReadOwn, access.Owned(identity.UserID)); err != nil {
		return nil, err
	}
	return s.predictions.ListByUser(ctx, identity.UserID, historyLimit)
}

// targetMonth is the month after the latest dated input row, or next month.
func (s *PredictionService) targetMonth(inputs []models.PredictionInput) string {
	var latest time.Time
	for _, in := range inputs {
		if in.Year <= 0 || in.Month <= 0 {
			continue
		}
		t := time.Date(in.Year, time.Month(in.Month), 1, 0, 0, 0, 0, time.UTC)
		if t.After(latest) {
			latest = t
		}
	}
	if latest.IsZero() {
		now := s.now().UTC()
		latest = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return latest.AddDate(0, 1, 0).Format("2006-01")
}
