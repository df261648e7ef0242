package jobs

import (
	"context"
	"time"

	"github.com/joseph-ayodele/network-extractor/constants"
	"github.com/joseph-ayodele/network-extractor/internal/entity"
)

// publishWithRetry retries with capped exponential backoff.
func (s *Service) publishWithRetry(ctx context.Context, msg entity.QueueMessage) error {
	var lastErr error
	for attempt := 1; attempt <= s.cfg.PublishAttempts; attempt++ {
		err := s.publisher.Publish(ctx, msg)
		if err == nil {
			return nil
		}
		lastErr = err
		s.logger.Warn("jobs.publish.retry", "job_id", msg.JobID, "attempt", attempt, "error", err)

		if attempt == s.cfg.PublishAttempts {
			break
		}

		backoff := s.cfg.PublishBaseDelay << (attempt - 1)
		if backoff > s.cfg.PublishMaxDelay {
			backoff = s.cfg.PublishMaxDelay
		}

		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
	return lastErr
}

// Reconcile republishes pending jobs untouched for ReconcileAfter and
// processing jobs untouched for StaleAfter. The first covers submissions whose
// publish failed after the job was stored; the second covers workers that died
// mid-job. Redelivery is safe because the worker skips finished jobs and jobs
// another worker is still touching.
func (s *Service) Reconcile(ctx context.Context) (int, error) {
	now := s.now()
	pending, err := s.repo.ListStale(ctx, constants.JobStatusPending, now.Add(-s.cfg.ReconcileAfter), s.cfg.ReconcileLimit)
	if err != nil {
		return 0, err
	}
	stuck, err := s.repo.ListStale(ctx, constants.JobStatusProcessing, now.Add(-s.cfg.StaleAfter), s.cfg.ReconcileLimit)
	if err != nil {
		return 0, err
	}

	republished := 0
	for i := range pending {
		job := &pending[i]
		if err := s.republish(ctx, job); err != nil {
			if ctx.Err() != nil {
				return republished, ctx.Err()
			}
			continue
		}
		// Touch the job so the next sweep waits another ReconcileAfter.
		if _, err := s.repo.Update(ctx, job.ID, job.Owner, entity.ProgressUpdate("requeued")); err != nil {
			s.logger.Warn("jobs.reconcile.touch_failed", "job_id", job.ID, "error", err)
		}
		republished++
	}
	// Stuck jobs are left untouched: the worker reprocesses only while the
	// row still looks abandoned.
	for i := range stuck {
		if err := s.republish(ctx, &stuck[i]); err != nil {
			if ctx.Err() != nil {
				return republished, ctx.Err()
			}
			continue
		}
		republished++
	}

	s.logger.Info("jobs.reconcile.done", "pending", len(pending), "stuck", len(stuck), "republished", republished)
	return republished, nil
}

func (s *Service) republish(ctx context.Context, job *entity.Job) error {
	err := s.publishWithRetry(ctx, entity.MessageFor(job))
	if err != nil {
		s.logger.Error("jobs.reconcile.publish_failed", "job_id", job.ID, "status", job.Status, "error", err)
	}
	return err
}
