// Package testdata locates problem files and materializes test cases into a
// workspace.
package testdata

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/Avadhutgiri/my-online-judge/internal/common/storage"
	"github.com/Avadhutgiri/my-online-judge/internal/judge/model"
	appErr "github.com/Avadhutgiri/my-online-judge/pkg/errors"
)

const (
	SampleFile   = "sample.txt"
	SolutionFile = "solution.cpp"

	objectPrefix = "problems"
)

// ProblemStore reads per-problem files from a local tree, falling back to
// object storage under problems/<id>/.
type ProblemStore struct {
	root    string
	objects storage.ObjectStorage
	bucket  string
	timeout time.Duration
}

// NewProblemStore creates a store. objects may be nil to disable the fallback.
func NewProblemStore(root string, objects storage.ObjectStorage, bucket string, timeout time.Duration) *ProblemStore {
	return &ProblemStore{root: root, objects: objects, bucket: bucket, timeout: timeout}
}

// Open returns a reader for <problemID>/<name>. Missing files report NotFound.
func (s *ProblemStore) Open(ctx context.Context, problemID, name string) (io.ReadCloser, error) {
	if problemID == "" || model.SanitizeID(problemID) != problemID || problemID == "." || problemID == ".." {
		return nil, appErr.New(appErr.InvalidParams).WithMessagef("invalid problem id %q", problemID)
	}
	if s.root != "" {
		f, err := os.Open(filepath.Join(s.root, problemID, name))
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, appErr.Wrapf(err, appErr.JudgeSystemError, "open problem file failed")
		}
	}
	if s.objects == nil || s.bucket == "" {
		return nil, appErr.NotFoundError(name)
	}

	ctxStorage := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctxStorage, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	key := path.Join(objectPrefix, problemID, name)
	reader, err := s.objects.GetObject(ctxStorage, s.bucket, key)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, appErr.NotFoundError(name)
		}
		return nil, appErr.Wrapf(err, appErr.StorageError, "fetch %s failed", key)
	}
	data, err := io.ReadAll(reader)
	reader.Close()
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.StorageError, "read %s failed", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// ReadAll returns the whole content of <problemID>/<name>.
func (s *ProblemStore) ReadAll(ctx context.Context, problemID, name string) (string, error) {
	r, err := s.Open(ctx, problemID, name)
	if err != nil {
		return "", err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return "", appErr.Wrapf(err, appErr.JudgeSystemError, "read %s failed", name)
	}
	return string(data), nil
}
