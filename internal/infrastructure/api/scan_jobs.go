package api

import (
	"context"
	"fmt"
	"time"

	"github.com/khanhnv2901/seca-posture/internal/checker"
	"github.com/khanhnv2901/seca-posture/internal/domain/posture"
	sharedErrors "github.com/khanhnv2901/seca-posture/internal/shared/errors"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"
)

// Scanner runs one posture scan.
type Scanner interface {
	Scan(ctx context.Context, raw string) (*posture.Report, error)
}

// ScanJobs runs scans in the background and records them as jobs. Each job
// is independent; there is no queue and no cap on concurrent jobs.
type ScanJobs struct {
	manager *JobManager
	scanner Scanner
	logger  *zap.Logger
	baseCtx context.Context
	wg      conc.WaitGroup
}

// NewScanJobs ties job execution to ctx rather than to the request that
// started the job, so scans outlive their HTTP request.
func NewScanJobs(ctx context.Context, manager *JobManager, scanner Scanner, logger *zap.Logger) *ScanJobs {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScanJobs{manager: manager, scanner: scanner, logger: logger, baseCtx: ctx}
}

// StartJob validates the request and launches the scan. Validation errors
// wrap ErrInvalidDomain or ErrValidation.
func (s *ScanJobs) StartJob(_ context.Context, req JobRequest) (*Job, error) {
	if req.Type == "" {
		req.Type = JobTypeScan
	}
	if req.Type != JobTypeScan {
		return nil, fmt.Errorf("%w: unsupported job type %q", sharedErrors.ErrValidation, req.Type)
	}
	domain, err := checker.NormalizeDomain(req.Domain)
	if err != nil {
		return nil, err
	}

	job := s.manager.CreateJob(req.Type, domain.String())
	s.logger.Info("job_created", zap.String("job_id", job.ID), zap.String("domain", job.Domain))

	s.wg.Go(func() { s.run(job.ID, job.Domain) })
	return job, nil
}

func (s *ScanJobs) run(id, domain string) {
	s.manager.UpdateJob(id, func(j *Job) {
		now := time.Now()
		j.Status = StatusRunning
		j.StartedAt = &now
	})

	report, err := s.scanner.Scan(s.baseCtx, domain)

	job := s.manager.UpdateJob(id, func(j *Job) {
		now := time.Now()
		j.FinishedAt = &now
		if err != nil {
			j.Status = StatusError
			j.Error = err.Error()
			return
		}
		j.Status = StatusDone
		j.Report = report
	})
	if job == nil {
		return
	}

	if err != nil {
		s.logger.Warn("job_failed", zap.String("job_id", id), zap.Error(err))
		return
	}
	s.logger.Info("job_completed", zap.String("job_id", id), zap.Int("score", report.Score()))
}

func (s *ScanJobs) GetJob(_ context.Context, id string) (*Job, error) {
	job := s.manager.GetJob(id)
	if job == nil {
		return nil, fmt.Errorf("%w: %s", sharedErrors.ErrJobNotFound, id)
	}
	return job, nil
}

func (s *ScanJobs) ListJobs(_ context.Context, limit int) ([]Job, error) {
	return s.manager.ListJobs(limit), nil
}

func (s *ScanJobs) Subscribe() (chan Job, func()) {
	return s.manager.Subscribe()
}

// Wait blocks until every launched scan has finished.
func (s *ScanJobs) Wait() {
	s.wg.Wait()
}
