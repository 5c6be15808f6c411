package persistence

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kamino-ci/kamino/internal/dispatch"
	"github.com/kamino-ci/kamino/internal/job"
)

// Adapter implements dispatch.PersistenceAdapter over a *gorm.DB.
type Adapter struct {
	db *gorm.DB
}

// NewAdapter wraps an already-connected *gorm.DB (see Connect).
func NewAdapter(db *gorm.DB) *Adapter {
	return &Adapter{db: db}
}

var _ dispatch.PersistenceAdapter = (*Adapter)(nil)

// InsertJob upserts a finished job by UID.
func (a *Adapter) InsertJob(ctx context.Context, j *job.Job) error {
	rec := toRecord(j)
	err := a.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "uid"}},
		UpdateAll: true,
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("insert job %s: %w", j.UID, err)
	}
	return nil
}

// FindJob looks up a single job by UID; a missing row returns (nil, nil).
func (a *Adapter) FindJob(ctx context.Context, uid string) (*job.Job, error) {
	var rec JobRecord
	err := a.db.WithContext(ctx).First(&rec, "uid = ?", uid).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find job %s: %w", uid, err)
	}
	return rec.toJob(), nil
}

// FindJobs returns jobs matching q, newest first.
func (a *Adapter) FindJobs(ctx context.Context, q job.Query) ([]*job.Job, error) {
	tx := a.applyQuery(a.db.WithContext(ctx), q).Order("stop_time desc")
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	if q.Offset > 0 {
		tx = tx.Offset(q.Offset)
	}

	var recs []JobRecord
	if err := tx.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("find jobs: %w", err)
	}

	out := make([]*job.Job, len(recs))
	for i, r := range recs {
		out[i] = r.toJob()
	}
	return out, nil
}

// CountJobs counts jobs matching q.
func (a *Adapter) CountJobs(ctx context.Context, q job.Query) (int, error) {
	var count int64
	if err := a.applyQuery(a.db.WithContext(ctx).Model(&JobRecord{}), q).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count jobs: %w", err)
	}
	return int(count), nil
}

// DeleteJobs deletes jobs matching q and returns the count removed.
func (a *Adapter) DeleteJobs(ctx context.Context, q job.Query) (int, error) {
	tx := a.applyQuery(a.db.WithContext(ctx), q).Delete(&JobRecord{})
	if tx.Error != nil {
		return 0, fmt.Errorf("delete jobs: %w", tx.Error)
	}
	return int(tx.RowsAffected), nil
}

// RecordHeartbeat upserts a worker's liveness row.
func (a *Adapter) RecordHeartbeat(ctx context.Context, workerID string, jobsProcessed int) error {
	rec := WorkerHeartbeat{WorkerID: workerID, JobsProcessed: jobsProcessed, LastActive: time.Now()}
	err := a.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "worker_id"}},
		UpdateAll: true,
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("record heartbeat for worker %s: %w", workerID, err)
	}
	return nil
}

func (a *Adapter) applyQuery(tx *gorm.DB, q job.Query) *gorm.DB {
	if q.PRNumber != nil {
		tx = tx.Where("pr_number = ?", *q.PRNumber)
	}
	if q.Ref != nil {
		tx = tx.Where("ref_name = ?", *q.Ref)
	}
	if q.Before != nil {
		tx = tx.Where("stop_time < ?", time.Unix(*q.Before, 0))
	}
	if q.After != nil {
		tx = tx.Where("stop_time > ?", time.Unix(*q.After, 0))
	}
	return tx
}
