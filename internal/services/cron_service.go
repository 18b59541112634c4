package services

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/islandtours/tour-booking-backend/internal/database"
)

// CronService manages scheduled background jobs
type CronService struct {
	cron         *cron.Cron
	instanceRepo *database.InstanceRepository
	logger       *logrus.Logger
}

// NewCronService creates a new CronService
func NewCronService(instanceRepo *database.InstanceRepository, logger *logrus.Logger) *CronService {
	return &CronService{
		cron:         cron.New(cron.WithSeconds()),
		instanceRepo: instanceRepo,
		logger:       logger,
	}
}

// Start registers and starts all cron jobs
func (s *CronService) Start() error {
	// Mark departed instances completed daily at 3 AM
	// Cron format: second minute hour day month weekday
	_, err := s.cron.AddFunc("0 0 3 * * *", s.sweepPastInstancesJob)
	if err != nil {
		return fmt.Errorf("failed to schedule instance sweep job: %w", err)
	}
	s.logger.Info("Scheduled: past instance sweep (daily at 3:00 AM)")

	s.cron.Start()
	s.logger.Info("Cron service started")
	return nil
}

// Stop stops all cron jobs and waits for running ones to finish
func (s *CronService) Stop() {
	s.logger.Info("Stopping cron service")
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Cron service stopped")
}

// sweepPastInstancesJob marks scheduled instances whose date has passed as
// completed. Cancelled instances are left alone.
func (s *CronService) sweepPastInstancesJob() {
	startTime := time.Now()
	today := time.Date(startTime.Year(), startTime.Month(), startTime.Day(), 0, 0, 0, 0, time.UTC)

	swept, err := s.instanceRepo.MarkPastCompleted(today)
	if err != nil {
		s.logger.WithError(err).Error("Past instance sweep failed")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"instances": swept,
		"duration":  time.Since(startTime).String(),
	}).Info("Past instance sweep finished")
}
