package repository

import (
	"context"
	"fmt"
	"time"

	"library-service/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type JobRunRepository interface {
	Claim(ctx context.Context, job string, day, at time.Time) (bool, error)
	Release(ctx context.Context, job string, day time.Time) error
}

type jobRunRepoImpl struct {
	db *gorm.DB
}

func NewJobRunRepository(db *gorm.DB) JobRunRepository {
	return &jobRunRepoImpl{db: db}
}

// Claim records job as done for day. It reports false when another run
// already holds the claim.
func (r *jobRunRepoImpl) Claim(ctx context.Context, job string, day, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.JobRun{Job: job, Day: day, CreatedAt: at})

	if res.Error != nil {
		return false, fmt.Errorf("claim %s for %s: %w", job, day.Format(time.DateOnly), res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Release drops the claim so a later run on the same day can try again.
func (r *jobRunRepoImpl) Release(ctx context.Context, job string, day time.Time) error {
	err := r.db.WithContext(ctx).
		Where("job = ? AND day = ?", job, day).
		Delete(&model.JobRun{}).Error

	if err != nil {
		return fmt.Errorf("release %s for %s: %w", job, day.Format(time.DateOnly), err)
	}
	return nil
}
