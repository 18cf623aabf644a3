package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/andrew-quintana/insurance-navigator-sub019/internal/model"
)

// ErrStaleTransition is returned when a guarded job update matched no row:
// the job moved on, or another worker holds the lease now.
var ErrStaleTransition = errors.New("job transition lost: stage or lease changed underneath")

type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.UploadJob, error) {
	var job model.UploadJob
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// CreateIfNoneActive creates job unless the document already has a
// non-terminal job, in which case the existing job is returned. Runs inside
// a transaction with the active row locked so two concurrent uploads of the
// same document cannot both create one.
func (r *JobRepository) CreateIfNoneActive(ctx context.Context, job *model.UploadJob) (created bool, active *model.UploadJob, err error) {
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.UploadJob
		findErr := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("document_id = ? AND stage NOT IN ?", job.DocumentID,
				[]model.JobStage{model.StageComplete, model.StageFailed}).
			First(&existing).Error

		if findErr == nil {
			active = &existing
			return nil
		}
		if !errors.Is(findErr, gorm.ErrRecordNotFound) {
			return findErr
		}

		if createErr := tx.Create(job).Error; createErr != nil {
			return createErr
		}
		created = true
		active = job
		return nil
	})
	return created, active, err
}

// Claim is the atomic compare-and-set on the lease columns. It succeeds only
// when the lease is unheld or expired, so at most one claimant wins.
func (r *JobRepository) Claim(ctx context.Context, jobID uuid.UUID, workerID string, ttl time.Duration) (bool, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).Model(&model.UploadJob{}).
		Where("id = ? AND stage NOT IN ?", jobID,
			[]model.JobStage{model.StageComplete, model.StageFailed}).
		Where("lease_owner = '' OR lease_expires_at IS NULL OR lease_expires_at < ?", now).
		Updates(map[string]interface{}{
			"lease_owner":      workerID,
			"lease_expires_at": now.Add(ttl),
			"started_at":       gorm.Expr("COALESCE(started_at, ?)", now),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ClaimNext finds the oldest runnable job and claims it. Returns nil when
// nothing is runnable. A lost claim race simply reports no work; the next
// poll tick tries again.
func (r *JobRepository) ClaimNext(ctx context.Context, workerID string, ttl time.Duration) (*model.UploadJob, error) {
	now := time.Now()

	var candidate model.UploadJob
	err := r.db.WithContext(ctx).
		Where("stage NOT IN ?", []model.JobStage{model.StageComplete, model.StageFailed}).
		Where("run_after <= ?", now).
		Where("lease_owner = '' OR lease_expires_at IS NULL OR lease_expires_at < ?", now).
		Order("run_after ASC").
		First(&candidate).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	ok, err := r.Claim(ctx, candidate.ID, workerID, ttl)
	if err != nil || !ok {
		return nil, err
	}

	return r.FindByID(ctx, candidate.ID)
}

// RenewLease extends the holder's lease. Fails with ErrStaleTransition when
// the lease was lost.
func (r *JobRepository) RenewLease(ctx context.Context, jobID uuid.UUID, workerID string, ttl time.Duration) error {
	res := r.db.WithContext(ctx).Model(&model.UploadJob{}).
		Where("id = ? AND lease_owner = ?", jobID, workerID).
		Update("lease_expires_at", time.Now().Add(ttl))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleTransition
	}
	return nil
}

// AdvanceStage moves the job from its current stage to next. The WHERE guard
// on (stage, lease_owner) makes the transition a compare-and-set: a worker
// whose lease was reclaimed cannot advance the job.
func (r *JobRepository) AdvanceStage(ctx context.Context, job *model.UploadJob, next model.JobStage, workerID string) error {
	if !job.Stage.CanAdvanceTo(next) {
		return errors.New("illegal stage transition " + string(job.Stage) + " -> " + string(next))
	}

	updates := map[string]interface{}{
		"stage":         next,
		"error_message": "",
	}
	if next == model.StageComplete {
		updates["completed_at"] = time.Now()
		updates["lease_owner"] = ""
		updates["lease_expires_at"] = nil
	}

	res := r.db.WithContext(ctx).Model(&model.UploadJob{}).
		Where("id = ? AND stage = ? AND lease_owner = ?", job.ID, job.Stage, workerID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleTransition
	}

	job.Stage = next
	return nil
}

// RescheduleRetry re-queues the same stage after delay, incrementing the
// retry count and releasing the lease.
func (r *JobRepository) RescheduleRetry(ctx context.Context, job *model.UploadJob, workerID, errorMsg string, delay time.Duration) error {
	res := r.db.WithContext(ctx).Model(&model.UploadJob{}).
		Where("id = ? AND lease_owner = ?", job.ID, workerID).
		Updates(map[string]interface{}{
			"retry_count":      gorm.Expr("retry_count + 1"),
			"error_message":    errorMsg,
			"run_after":        time.Now().Add(delay),
			"lease_owner":      "",
			"lease_expires_at": nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleTransition
	}

	job.RetryCount++
	return nil
}

// MarkFailed transitions the job to its terminal failed stage with a
// human-readable reason.
func (r *JobRepository) MarkFailed(ctx context.Context, job *model.UploadJob, workerID, errorMsg string) error {
	res := r.db.WithContext(ctx).Model(&model.UploadJob{}).
		Where("id = ? AND lease_owner = ? AND stage NOT IN ?", job.ID, workerID,
			[]model.JobStage{model.StageComplete, model.StageFailed}).
		Updates(map[string]interface{}{
			"stage":            model.StageFailed,
			"error_message":    errorMsg,
			"completed_at":     time.Now(),
			"lease_owner":      "",
			"lease_expires_at": nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleTransition
	}

	job.Stage = model.StageFailed
	return nil
}
