package testdata

import (
	"context"
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/Avadhutgiri/my-online-judge/internal/common/cache"
	"github.com/Avadhutgiri/my-online-judge/internal/common/storage"
	"github.com/Avadhutgiri/my-online-judge/internal/judge/model"
	"github.com/Avadhutgiri/my-online-judge/internal/judge/workspace"
	appErr "github.com/Avadhutgiri/my-online-judge/pkg/errors"
	"github.com/Avadhutgiri/my-online-judge/pkg/utils/logger"

	"go.uber.org/zap"
)

const objectScheme = "s3://"

// Source copies the test set of a submission into a workspace. It reports
// false when it does not hold data for the submission.
type Source interface {
	Name() string
	Stage(ctx context.Context, ws *workspace.Workspace, sub model.Submission) (bool, error)
}

// Stager tries sources in order and pairs the staged files.
type Stager struct {
	sources []Source
}

// NewStager creates a stager over sources, tried in the given order.
func NewStager(sources ...Source) *Stager {
	return &Stager{sources: sources}
}

// Stage materializes the test set and returns the paired test cases.
func (s *Stager) Stage(ctx context.Context, ws *workspace.Workspace, sub model.Submission) ([]workspace.TestCase, error) {
	for _, src := range s.sources {
		ok, err := src.Stage(ctx, ws, sub)
		if err != nil {
			return nil, err
		}
		if ok {
			logger.Debug(ctx, "test data staged", zap.String("source", src.Name()))
			return ws.TestCases()
		}
	}
	return nil, appErr.New(appErr.TestDataMismatch).WithMessage("No test cases found")
}

// LocalSource copies from the directory named by the job's inputPath.
type LocalSource struct{}

func (LocalSource) Name() string { return "local" }

func (LocalSource) Stage(_ context.Context, ws *workspace.Workspace, sub model.Submission) (bool, error) {
	if sub.InputPath == "" || strings.HasPrefix(sub.InputPath, objectScheme) {
		return false, nil
	}
	info, err := os.Stat(sub.InputPath)
	if err != nil || !info.IsDir() {
		return false, nil
	}
	return true, ws.StageTests(sub.InputPath)
}

// ObjectSource downloads input*.txt and output*.txt under an s3://bucket/prefix
// inputPath.
type ObjectSource struct {
	objects storage.ObjectStorage
	timeout time.Duration
}

// NewObjectSource creates an object storage source.
func NewObjectSource(objects storage.ObjectStorage, timeout time.Duration) *ObjectSource {
	return &ObjectSource{objects: objects, timeout: timeout}
}

func (s *ObjectSource) Name() string { return "object" }

func (s *ObjectSource) Stage(ctx context.Context, ws *workspace.Workspace, sub model.Submission) (bool, error) {
	bucket, prefix, ok := ParseObjectPath(sub.InputPath)
	if !ok {
		return false, nil
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	objects, err := s.objects.ListObjects(ctx, bucket, prefix)
	if err != nil {
		return false, appErr.Wrapf(err, appErr.StorageError, "list test data failed")
	}
	for _, obj := range objects {
		name := path.Base(obj.Key)
		if !workspace.IsInputFile(name) && !workspace.IsOutputFile(name) {
			continue
		}
		reader, err := s.objects.GetObject(ctx, bucket, obj.Key)
		if err != nil {
			return false, appErr.Wrapf(err, appErr.StorageError, "fetch %s failed", obj.Key)
		}
		err = ws.AddTestFile(name, reader)
		reader.Close()
		if err != nil {
			return false, err
		}
	}
	return true, nil
}

// ParseObjectPath splits s3://bucket/prefix.
func ParseObjectPath(raw string) (bucket, prefix string, ok bool) {
	if !strings.HasPrefix(raw, objectScheme) {
		return "", "", false
	}
	rest := strings.TrimPrefix(raw, objectScheme)
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", false
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return bucket, prefix, true
}

// CacheSource reads test cases preloaded into the key-value cache as
// problem:<id>:count, problem:<id>:input:<i> and problem:<id>:output:<i>.
type CacheSource struct {
	cache cache.Cache
}

// NewCacheSource creates a cache-backed source.
func NewCacheSource(c cache.Cache) *CacheSource {
	return &CacheSource{cache: c}
}

func (s *CacheSource) Name() string { return "cache" }

func (s *CacheSource) Stage(ctx context.Context, ws *workspace.Workspace, sub model.Submission) (bool, error) {
	if sub.ProblemID == "" {
		return false, nil
	}
	raw, err := s.cache.Get(ctx, CountKey(sub.ProblemID))
	if err != nil {
		return false, appErr.Wrapf(err, appErr.CacheError, "read test count failed")
	}
	if raw == "" {
		return false, nil
	}
	count, err := strconv.Atoi(raw)
	if err != nil || count < 0 {
		return false, appErr.New(appErr.TestCaseInvalid).WithMessagef("invalid cached test count %q", raw)
	}
	if count == 0 {
		return false, nil
	}
	for i := 0; i < count; i++ {
		input, err := s.cache.Get(ctx, InputKey(sub.ProblemID, i))
		if err != nil {
			return false, appErr.Wrapf(err, appErr.CacheError, "read cached input failed")
		}
		output, err := s.cache.Get(ctx, OutputKey(sub.ProblemID, i))
		if err != nil {
			return false, appErr.Wrapf(err, appErr.CacheError, "read cached output failed")
		}
		// Zero padding keeps lexicographic order equal to index order.
		if err := ws.AddTestFile(fmt.Sprintf("input%04d.txt", i), strings.NewReader(input)); err != nil {
			return false, err
		}
		if err := ws.AddTestFile(fmt.Sprintf("output%04d.txt", i), strings.NewReader(output)); err != nil {
			return false, err
		}
	}
	return true, nil
}

// CountKey is the cache key holding the number of cached test cases.
func CountKey(problemID string) string {
	return "problem:" + problemID + ":count"
}

// InputKey is the cache key of the i-th cached input.
func InputKey(problemID string, i int) string {
	return fmt.Sprintf("problem:%s:input:%d", problemID, i)
}

// OutputKey is the cache key of the i-th cached expected output.
func OutputKey(problemID string, i int) string {
	return fmt.Sprintf("problem:%s:output:%d", problemID, i)
}
