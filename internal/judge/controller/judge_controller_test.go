package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Avadhutgiri/my-online-judge/internal/common/cache"
	"github.com/Avadhutgiri/my-online-judge/internal/judge/model"
	"github.com/Avadhutgiri/my-online-judge/internal/judge/repository"
	appErr "github.com/Avadhutgiri/my-online-judge/pkg/errors"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
)

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type body struct {
	Code    appErr.ErrorCode   `json:"code"`
	Message string             `json:"message"`
	Data    model.ResultRecord `json:"data"`
}

func newRouter(t *testing.T, checks map[string]Pinger) (*gin.Engine, *repository.ResultRepository) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	c, err := cache.NewRedisCache(mr.Addr())
	if err != nil {
		t.Fatalf("redis: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	repo := repository.NewResultRepository(c, 0)
	r := gin.New()
	NewJudgeController(repo, checks).RegisterRoutes(r)
	return r, repo
}

func TestGetResult(t *testing.T) {
	t.Parallel()
	r, repo := newRouter(t, nil)
	rec := model.ResultRecord{SubmissionID: "run_1", Status: model.StatusExecuted, UserOutput: model.StringPtr("27")}
	if err := repo.Save(context.Background(), rec); err != nil {
		t.Fatalf("save: %v", err)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/judge/results/run_1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got body
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Code != appErr.Success || got.Data.UserOutput == nil || *got.Data.UserOutput != "27" {
		t.Fatalf("unexpected body %s", w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/judge/results/missing", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		checks map[string]Pinger
		want   int
	}{
		{name: "no checks", want: http.StatusOK},
		{
			name:   "healthy",
			checks: map[string]Pinger{"broker": pingFunc(func(context.Context) error { return nil })},
			want:   http.StatusOK,
		},
		{
			name:   "broker down",
			checks: map[string]Pinger{"broker": pingFunc(func(context.Context) error { return errors.New("refused") })},
			want:   http.StatusServiceUnavailable,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, _ := newRouter(t, tc.checks)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			if w.Code != tc.want {
				t.Fatalf("status = %d, want %d", w.Code, tc.want)
			}
		})
	}
}
