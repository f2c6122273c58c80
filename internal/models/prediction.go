package models

import "time"

// PredictionInput is one row forwarded to the forecasting service.
type PredictionInput struct {
	Title         string  `json:"title,omitempty"`
	Category      string  `json:"category"`
	PaymentMethod string  `json:"paymentMethod"`
	Year          int     `json:"year"`
	Month         int     `json:"month"`
	Day           int     `json:"day"`
	CurrentAmount float64 `json:"currentAmount,omitempty"`
}

type PredictionResult struct {
	Predictions []float64 `json:"predictions"`
	Fallback    bool      `json:"fallback"`
	Message     string    `json:"message,omitempty"`
}

type Prediction struct {
	ID                string
	UserID            string
	Input             []PredictionInput
	Result            PredictionResult
	PredictedForMonth string
	CreatedAt         time.Time
}
