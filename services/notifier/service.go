// Package notifier delivers triggered signals to Slack and to
// connected websocket clients.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"gorm.io/gorm"

	"quantpulse/apperrors"
	"quantpulse/logger"
	"quantpulse/models"
)

// RecentLimit is the default number of delivered notifications returned
const RecentLimit = 20

// slackTimeout bounds a single webhook call
const slackTimeout = 10 * time.Second

// Summary describes one notification run
type Summary struct {
	Delivered int    `json:"delivered"`
	Skipped   int    `json:"skipped"`
	Reason    string `json:"reason,omitempty"`
}

// Service sends signal notifications. When Slack is disabled the
// service still marks signals as processed so they are not re-sent
// after the integration is turned on.
type Service struct {
	db         *gorm.DB
	hub        *Hub
	httpClient *http.Client
	webhookURL string
	enabled    bool
	now        func() time.Time
}

// NewService creates a notifier service
func NewService(db *gorm.DB, hub *Hub, webhookURL string, enabled bool) *Service {
	return &Service{
		db:         db,
		hub:        hub,
		httpClient: &http.Client{Timeout: slackTimeout},
		webhookURL: webhookURL,
		enabled:    enabled && webhookURL != "",
		now:        time.Now,
	}
}

// SetHTTPClient overrides the webhook client, used in tests
func (s *Service) SetHTTPClient(client *http.Client) {
	s.httpClient = client
}

// NotifyPending delivers all signals not yet notified. Markets are
// closed on weekends, so weekend runs deliver nothing.
func (s *Service) NotifyPending(ctx context.Context) (*Summary, error) {
	now := s.now().UTC()
	if wd := now.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return &Summary{Reason: "weekend, markets closed"}, nil
	}

	var pending []models.SignalResult
	if err := s.db.WithContext(ctx).
		Where("notified = ?", false).
		Order("timestamp asc").
		Find(&pending).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	// One notification per symbol per run; the highest confidence
	// signal for the symbol wins, the rest are marked processed.
	bySymbol := make(map[string]int)
	for i, signal := range pending {
		best, ok := bySymbol[signal.Symbol]
		if !ok || signal.Confidence > pending[best].Confidence {
			bySymbol[signal.Symbol] = i
		}
	}

	summary := &Summary{}
	for symbol, idx := range bySymbol {
		best := pending[idx]
		if err := s.Notify(ctx, &best); err != nil {
			logger.Get().Warnw("notification failed",
				"symbol", symbol, "signal", best.SignalType, "error", err)
			summary.Skipped++
			continue
		}
		summary.Delivered++

		for _, other := range pending {
			if other.Symbol == symbol && other.ID != best.ID {
				if err := s.markNotified(ctx, &other); err != nil {
					return nil, err
				}
				summary.Skipped++
			}
		}
	}
	return summary, nil
}

// Notify delivers one signal and marks it as notified
func (s *Service) Notify(ctx context.Context, signal *models.SignalResult) error {
	if s.hub != nil {
		s.hub.BroadcastSignal(*signal)
	}

	if s.enabled {
		if err := s.postToSlack(ctx, signal); err != nil {
			return err
		}
	}
	return s.markNotified(ctx, signal)
}

// Recent returns the most recently delivered notifications
func (s *Service) Recent(ctx context.Context, limit int) ([]models.SignalResult, error) {
	if limit <= 0 || limit > 100 {
		limit = RecentLimit
	}
	var signals []models.SignalResult
	if err := s.db.WithContext(ctx).
		Where("notified = ?", true).
		Order("notified_at desc").
		Limit(limit).
		Find(&signals).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return signals, nil
}

func (s *Service) markNotified(ctx context.Context, signal *models.SignalResult) error {
	now := time.Now().UTC()
	if err := s.db.WithContext(ctx).Model(signal).Updates(map[string]interface{}{
		"notified":    true,
		"notified_at": now,
	}).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	signal.Notified = true
	signal.NotifiedAt = &now
	return nil
}

func (s *Service) postToSlack(ctx context.Context, signal *models.SignalResult) error {
	payload := map[string]interface{}{
		"text": formatSlackMessage(signal),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func formatSlackMessage(signal *models.SignalResult) string {
	return fmt.Sprintf(
		":chart_with_upwards_trend: *%s* triggered *%s* (confidence %.0f%%)\n%s\n<https://finance.yahoo.com/quote/%s|View on Yahoo Finance>",
		signal.Symbol,
		signal.SignalType,
		signal.Confidence*100,
		signal.Explanation,
		signal.Symbol,
	)
}
