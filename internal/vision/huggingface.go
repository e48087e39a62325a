// Package vision classifies crop leaf photos via the HuggingFace
// inference API.
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"agribot/internal/domain"
)

const (
	defaultModelURL = "https://api-inference.huggingface.co/models/wambugu71/crop_leaf_diseases_vit"
	maxImageBytes   = 10 << 20 // WhatsApp media tops out well below 10 MB
	maxPredictions  = 5

	loadingLabel = "Model Loading"
	loadingNote  = "The disease detection model is starting up. Please try again in 20 seconds."
)

// HuggingFace implements domain.ImageClassifier.
type HuggingFace struct {
	apiURL string
	token  string
	client *http.Client
	logger *slog.Logger
}

type Config struct {
	APIURL  string
	Token   string
	Timeout time.Duration
	Logger  *slog.Logger
}

func New(cfg Config) *HuggingFace {
	if cfg.APIURL == "" {
		cfg.APIURL = defaultModelURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &HuggingFace{
		apiURL: cfg.APIURL,
		token:  cfg.Token,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: cfg.Logger,
	}
}

// Classify downloads the image and sends the raw bytes to the inference
// API. A cold model (HTTP 503) returns a single loading sentinel so the
// caller can relay the wait message instead of failing.
func (h *HuggingFace) Classify(ctx context.Context, imageURL string) ([]domain.Prediction, error) {
	img, err := h.download(ctx, imageURL)
	if err != nil {
		return nil, fmt.Errorf("download image: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", h.apiURL, bytes.NewReader(img))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inference request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusServiceUnavailable {
		h.logger.Info("vision model cold, returning loading sentinel")
		return []domain.Prediction{{Label: loadingLabel, Note: loadingNote}}, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("inference %d: %s", resp.StatusCode, string(body))
	}

	var preds []domain.Prediction
	if err := json.NewDecoder(resp.Body).Decode(&preds); err != nil {
		return nil, fmt.Errorf("decode predictions: %w", err)
	}

	sort.SliceStable(preds, func(i, j int) bool { return preds[i].Score > preds[j].Score })
	if len(preds) > maxPredictions {
		preds = preds[:maxPredictions]
	}
	return preds, nil
}

func (h *HuggingFace) download(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", imageURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image fetch %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", maxImageBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image")
	}
	return data, nil
}
