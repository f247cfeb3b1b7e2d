package monitoring

import (
	"fmt"
	"time"

	"github.com/isdelr/skill-loop-be/internal/metrics"
	"github.com/isdelr/skill-loop-be/internal/models"
	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// OTP codes older than this are removed by the purge job.
const otpRetention = 24 * time.Hour

type phaseMarker interface {
	MarkOverdue(now time.Time) ([]models.OverduePhase, error)
}

type assignmentMarker interface {
	MarkOverdueAssignments(now time.Time) (int, error)
}

type otpPurger interface {
	PurgeOTPs(olderThan time.Duration) (int64, error)
}

// OverdueResult reports what one overdue sweep changed.
type OverdueResult struct {
	PhasesMarked      int `json:"phasesMarked"`
	AssignmentsMarked int `json:"assignmentsMarked"`
}

// Scheduler runs the background jobs on cron schedules.
type Scheduler struct {
	journeys  phaseMarker
	trainings assignmentMarker
	auth      otpPurger
	clock     clockwork.Clock
	cron      *cron.Cron
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(journeys phaseMarker, trainings assignmentMarker, auth otpPurger, clock clockwork.Clock) *Scheduler {
	return &Scheduler{
		journeys:  journeys,
		trainings: trainings,
		auth:      auth,
		clock:     clock,
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
		),
	}
}

// Start registers the jobs and starts the cron loop. overdueSpec is a standard 5-field expression.
func (s *Scheduler) Start(overdueSpec string) error {
	if _, err := s.cron.AddFunc(overdueSpec, func() { s.RunOverdue() }); err != nil {
		return fmt.Errorf("invalid overdue schedule %q: %w", overdueSpec, err)
	}
	if _, err := s.cron.AddFunc("@hourly", s.purgeOTPs); err != nil {
		return err
	}
	log.Info().Str("overdue_schedule", overdueSpec).Msg("Starting background scheduler...")
	s.cron.Start()
	return nil
}

// Stop halts the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Info().Msg("Stopping background scheduler.")
}

// RunOverdue marks overdue journey phases and training assignments. Both sweeps run even if one fails.
func (s *Scheduler) RunOverdue() (OverdueResult, error) {
	now := s.clock.Now().UTC()
	var result OverdueResult
	var firstErr error

	phases, err := s.journeys.MarkOverdue(now)
	if err != nil {
		log.Error().Err(err).Msg("Scheduler: Failed to mark overdue journey phases")
		firstErr = err
	}
	result.PhasesMarked = len(phases)

	assignments, err := s.trainings.MarkOverdueAssignments(now)
	if err != nil {
		log.Error().Err(err).Msg("Scheduler: Failed to mark overdue assignments")
		if firstErr == nil {
			firstErr = err
		}
	}
	result.AssignmentsMarked = assignments

	recordRun("overdue", firstErr)
	log.Info().Int("phases", result.PhasesMarked).Int("assignments", result.AssignmentsMarked).Msg("Scheduler: Overdue sweep finished")
	return result, firstErr
}

func (s *Scheduler) purgeOTPs() {
	n, err := s.auth.PurgeOTPs(otpRetention)
	recordRun("otp_purge", err)
	if err != nil {
		log.Error().Err(err).Msg("Scheduler: Failed to purge login codes")
		return
	}
	if n > 0 {
		log.Info().Int64("purged", n).Msg("Scheduler: Purged old login codes")
	}
}

func recordRun(job string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.CronRuns.WithLabelValues(job, status).Inc()
}
