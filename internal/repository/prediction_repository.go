package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/DevOwais28/Expense-Tracker/internal/models"
)

type PredictionRepository struct {
	db DB
}

func NewPredictionRepository(db DB) *PredictionRepository {
	return &PredictionRepository{db: db}
}

func (r *PredictionRepository) Create(ctx context.Context, p models.Prediction) error {
	input, err := json.Marshal(p.Input)
	if err != nil {
		return fmt.Errorf("encode input: %w", err)
	}
	result, err := json.Marshal(p.Result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	const query = `
		INSERT INTO predictions (id, user_id, input_data, prediction, predicted_for_month, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = r.db.Exec(ctx, query, p.ID, p.UserID, input, result, p.PredictedForMonth, p.CreatedAt)
	return err
}

func (r *PredictionRepository) ListByUser(ctx context.Context, userID string, limit int) ([]models.Prediction, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, input_data, prediction, predicted_for_month, created_at
		FROM predictions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var predictions []models.Prediction
	for rows.Next() {
		var (
			p      models.Prediction
			input  []byte
			result []byte
		)
		if err := rows.Scan(&p.ID, &p.UserID, &input, &result, &p.PredictedForMonth, &p.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(input, &p.Input); err != nil {
			return nil, fmt.Errorf("decode input: %w", err)
		}
		if err := json.Unmarshal(result, &p.Result); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
		predictions = append(predictions, p)
	}
	return predictions, rows.Err()
}
