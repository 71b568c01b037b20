// Package scheduler runs the recurring jobs: the nightly market data
// refresh and analysis pass, and periodic data cleanup.
package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"gorm.io/gorm"

	"quantpulse/logger"
	"quantpulse/models"
	"quantpulse/services/analyzer"
	"quantpulse/services/marketdata"
	"quantpulse/services/notifier"
)

// jobTimeout bounds one full pipeline run
const jobTimeout = 30 * time.Minute

// Scheduler manages the recurring jobs
type Scheduler struct {
	cron       *gocron.Scheduler
	db         *gorm.DB
	marketData *marketdata.Service
	analyzer   *analyzer.Service
	notifier   *notifier.Service
}

// NewScheduler creates a new scheduler instance
func NewScheduler(db *gorm.DB, md *marketdata.Service, az *analyzer.Service, nt *notifier.Service) *Scheduler {
	return &Scheduler{
		cron:       gocron.NewScheduler(time.UTC),
		db:         db,
		marketData: md,
		analyzer:   az,
		notifier:   nt,
	}
}

// Start registers and starts all jobs. scheduleTime is a UTC HH:MM
// string for the nightly pipeline run.
func (s *Scheduler) Start(scheduleTime string) {
	// Nightly pipeline: refresh data, analyze, notify.
	s.cron.Every(1).Day().At(scheduleTime).Do(func() {
		s.runPipeline()
	})

	// Weekly cleanup of old data
	s.cron.Every(1).Week().Sunday().At("01:00").Do(func() {
		s.cleanupOldData()
	})

	s.cron.StartAsync()
	logger.Get().Infow("scheduler started", "pipeline_time", scheduleTime)
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// RunPipelineNow triggers the full pipeline outside the schedule
func (s *Scheduler) RunPipelineNow() {
	s.runPipeline()
}

// runPipeline fetches fresh bars for every selected symbol, evaluates
// triggers, and dispatches notifications for anything that fired
func (s *Scheduler) runPipeline() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	logger.Get().Infow("nightly pipeline starting")

	results, err := s.marketData.FetchAll(ctx)
	if err != nil {
		logger.Get().Errorw("pipeline aborted, market data refresh failed", "error", err)
		return
	}
	fetched := 0
	for _, r := range results {
		if r.Error == "" {
			fetched++
		}
	}
	logger.Get().Infow("market data refreshed", "symbols", len(results), "succeeded", fetched)

	summary, err := s.analyzer.AnalyzeAll(ctx)
	if err != nil {
		logger.Get().Errorw("pipeline aborted, analysis failed", "error", err)
		return
	}

	delivery, err := s.notifier.NotifyPending(ctx)
	if err != nil {
		logger.Get().Errorw("notification dispatch failed", "error", err)
		return
	}

	logger.Get().Infow("nightly pipeline complete",
		"analyzed", summary.Analyzed,
		"triggered", summary.Triggered,
		"delivered", delivery.Delivered,
		"skipped", delivery.Skipped)
}

// cleanupOldData removes old data to save storage
func (s *Scheduler) cleanupOldData() {
	logger.Get().Infow("cleaning up old data")

	// Delete bars older than 5 years
	fiveYearsAgo := time.Now().AddDate(-5, 0, 0)
	if err := s.db.Where("date < ?", fiveYearsAgo).Delete(&models.MarketData{}).Error; err != nil {
		logger.Get().Errorw("failed to clean up old market data", "error", err)
	}

	// Keep the last 3 months of signals
	threeMonthsAgo := time.Now().AddDate(0, -3, 0)
	if err := s.db.Where("timestamp < ?", threeMonthsAgo).Delete(&models.SignalResult{}).Error; err != nil {
		logger.Get().Errorw("failed to clean up old signals", "error", err)
	}
}
