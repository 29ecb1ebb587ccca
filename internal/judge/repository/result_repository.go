package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Avadhutgiri/my-online-judge/internal/common/cache"
	"github.com/Avadhutgiri/my-online-judge/internal/judge/model"
	appErr "github.com/Avadhutgiri/my-online-judge/pkg/errors"
)

const (
	resultKeyPrefix = "run_result:"

	// DefaultResultTTL is how long a result record stays readable.
	DefaultResultTTL = 600 * time.Second
)

// ResultRepository stores result records in the result cache.
type ResultRepository struct {
	cache cache.Cache
	TTL   time.Duration
}

// NewResultRepository creates a new repository. A zero ttl uses DefaultResultTTL.
func NewResultRepository(cacheClient cache.Cache, ttl time.Duration) *ResultRepository {
	if ttl <= 0 {
		ttl = DefaultResultTTL
	}
	return &ResultRepository{cache: cacheClient, TTL: ttl}
}

// ResultKey is the cache key of a submission's result.
func ResultKey(submissionID string) string {
	return resultKeyPrefix + submissionID
}

// Get returns the result by submission id.
func (r *ResultRepository) Get(ctx context.Context, submissionID string) (model.ResultRecord, error) {
	if submissionID == "" {
		return model.ResultRecord{}, appErr.ValidationError("submission_id", "required")
	}
	if r.cache == nil {
		return model.ResultRecord{}, appErr.New(appErr.CacheError).WithMessage("cache client is not initialized")
	}
	val, err := r.cache.Get(ctx, ResultKey(submissionID))
	if err != nil {
		return model.ResultRecord{}, appErr.Wrapf(err, appErr.CacheError, "read result failed")
	}
	if val == "" {
		return model.ResultRecord{}, appErr.New(appErr.NotFound).WithMessage("result not found")
	}
	var rec model.ResultRecord
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return model.ResultRecord{}, appErr.Wrapf(err, appErr.CacheError, "decode result failed")
	}
	return rec, nil
}

// Save stores the result with the repository TTL.
func (r *ResultRepository) Save(ctx context.Context, rec model.ResultRecord) error {
	if rec.SubmissionID == "" {
		return appErr.ValidationError("submission_id", "required")
	}
	if r.cache == nil {
		return appErr.New(appErr.CacheError).WithMessage("cache client is not initialized")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal result failed: %w", err)
	}
	if err := r.cache.Set(ctx, ResultKey(rec.SubmissionID), string(data), r.TTL); err != nil {
		return appErr.Wrapf(err, appErr.CacheSetFailed, "store result failed")
	}
	return nil
}
