package prediction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/DevOwais28/Expense-Tracker/internal/metrics"
	"github.com/DevOwais28/Expense-Tracker/internal/models"
)

var ErrUpstreamTimeout = errors.New("prediction service timed out")

const (
	SourcePrimary   = "primary"
	SourceSecondary = "secondary"
	SourceFallback  = "fallback"

	fallbackMessage = "Using realistic fallback prediction based on your spending patterns"
	minPerCategory  = 50
	defaultEstimate = 500
)

type Config struct {
	URL         string
	FallbackURL string
	Timeout     time.Duration
}

// Client forwards prediction requests to the forecasting service, trying the
// primary URL, then the secondary URL, then a local estimate.
type Client struct {
	endpoints []endpoint
	http      *http.Client
	timeout   time.Duration
	log       zerolog.Logger
}

type endpoint struct {
	source string
	url    string
}

func NewClient(cfg Config, log zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	var eps []endpoint
	if cfg.URL != "" {
		eps = append(eps, endpoint{source: SourcePrimary, url: cfg.URL})
	}
	if cfg.FallbackURL != "" {
		eps = append(eps, endpoint{source: SourceSecondary, url: cfg.FallbackURL})
	}
	return &Client{
		endpoints: eps,
		http:      &http.Client{},
		timeout:   cfg.Timeout,
		log:       log,
	}
}

// Predict never fails: when no upstream answers it returns the labelled
// fallback estimate. The second return value names the answering source.
func (c *Client) Predict(ctx context.Context, inputs []models.PredictionInput) (models.PredictionResult, string) {
	for _, ep := range c.endpoints {
		result, err := c.call(ctx, ep.url, inputs)
		if err == nil {
			metrics.PredictionRequests.WithLabelValues(ep.source).Inc()
			return result, ep.source
		}
		c.log.Warn().Err(err).Str("source", ep.source).Msg("prediction upstream failed")
		if ctx.Err() != nil {
			break
		}
	}

	metrics.PredictionRequests.WithLabelValues(SourceFallback).Inc()
	return Fallback(inputs), SourceFallback
}

type upstreamResponse struct {
	Predictions []float64 `json:"predictions"`
}

func (c *Client) call(ctx context.Context, url string, inputs []models.PredictionInput) (models.PredictionResult, error) {
	body, err := json.Marshal(inputs)
	if err != nil {
		return models.PredictionResult{}, fmt.Errorf("encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var out upstreamResponse
	// One quick retry absorbs a cold-starting upstream; the timeout above
	// bounds the whole attempt.
	backoff := retry.WithMaxRetries(1, retry.NewConstant(100*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && !netErr.Timeout() {
				return retry.RetryableError(err)
			}
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusBadGateway || resp.StatusCode == http.StatusServiceUnavailable {
			return retry.RetryableError(fmt.Errorf("upstream status %d", resp.StatusCode))
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
			return fmt.Errorf("upstream status %d: %s", resp.StatusCode, snippet)
		}
		return json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out)
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return models.PredictionResult{}, fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
		}
		return models.PredictionResult{}, err
	}
	if out.Predictions == nil {
		return models.PredictionResult{}, errors.New("upstream response has no predictions")
	}
	return models.PredictionResult{Predictions: out.Predictions}, nil
}

// Fallback spreads current spending across the requested rows in proportion
// to each row's share, with a floor per row. Without rows it returns a single
// default estimate.
func Fallback(inputs []models.PredictionInput) models.PredictionResult {
	result := models.PredictionResult{Fallback: true, Message: fallbackMessage}
	if len(inputs) == 0 {
		result.Predictions = []float64{defaultEstimate}
		return result
	}

	var total float64
	for _, in := range inputs {
		if in.CurrentAmount > 0 {
			total += in.CurrentAmount
		}
	}

	result.Predictions = make([]float64, len(inputs))
	for i, in := range inputs {
		share := 1 / float64(len(inputs))
		if total > 0 {
			share = math.Max(in.CurrentAmount, 0) / total
		}
		result.Predictions[i] = math.Max(math.Round(total*share), minPerCategory)
	}
	return result
}
