package sandbox

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	appErr "github.com/Avadhutgiri/my-online-judge/pkg/errors"
	"github.com/Avadhutgiri/my-online-judge/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	containerWorkDir = "/app"

	exitOOMKilled = 137

	defaultStderrMaxBytes = 64 * 1024
	defaultPidsLimit      = 64
)

// Status classifies how a sandboxed run ended.
type Status string

const (
	StatusSuccess        Status = "success"
	StatusTimeout        Status = "timeout"
	StatusMemoryExceeded Status = "memory-exceeded"
	StatusRuntimeError   Status = "runtime-error"
)

// Outcome is the classified result of one sandboxed run.
type Outcome struct {
	Status     Status
	Diagnostic string
	OutputFile string
	ExitCode   int
	Duration   time.Duration
}

// Request describes one container run.
type Request struct {
	// Name is the container name, unique per execution and role.
	Name string
	// HostDir is mounted read-write at /app.
	HostDir    string
	Image      string
	Command    []string
	InputFile  string
	OutputFile string
	Timeout    time.Duration
	// MemoryMB of 0 leaves the container without a memory ceiling.
	MemoryMB int64
}

// Config controls container limits and the runtime connection.
type Config struct {
	// Host overrides DOCKER_HOST for the engine API.
	Host           string        `yaml:"host"`
	CPUs           float64       `yaml:"cpus"`
	PidsLimit      int64         `yaml:"pidsLimit"`
	Network        string        `yaml:"network"`
	KillTimeout    time.Duration `yaml:"killTimeout"`
	StderrMaxBytes int           `yaml:"stderrMaxBytes"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.CPUs <= 0 {
		c.CPUs = 1
	}
	if c.PidsLimit <= 0 {
		c.PidsLimit = defaultPidsLimit
	}
	if c.Network == "" {
		c.Network = "none"
	}
	if c.KillTimeout <= 0 {
		c.KillTimeout = 2 * time.Second
	}
	if c.StderrMaxBytes <= 0 {
		c.StderrMaxBytes = defaultStderrMaxBytes
	}
}

// Executor runs programs in containers.
type Executor struct {
	cfg     Config
	runtime Runtime
}

// NewExecutor creates an executor over runtime.
func NewExecutor(cfg Config, runtime Runtime) *Executor {
	cfg.ApplyDefaults()
	return &Executor{cfg: cfg, runtime: runtime}
}

// ContainerName names the container for one execution and role.
func ContainerName(executionID, role string) string {
	return "submission_" + executionID + "_" + role
}

// Execute runs req and classifies the outcome. Errors are returned only when
// the container runtime itself failed or ctx ended.
func (e *Executor) Execute(ctx context.Context, req Request) (Outcome, error) {
	if err := validateRequest(req); err != nil {
		return Outcome{}, err
	}

	input, err := os.Open(req.InputFile)
	if err != nil {
		return Outcome{}, appErr.Wrapf(err, appErr.JudgeSystemError, "open input file failed")
	}
	defer input.Close()

	output, err := os.Create(req.OutputFile)
	if err != nil {
		return Outcome{}, appErr.Wrapf(err, appErr.JudgeSystemError, "create output file failed")
	}
	defer output.Close()

	stderr := NewLimitedBuffer(e.cfg.StderrMaxBytes)
	stdio := Stdio{
		Stdin:  input,
		Stdout: output,
		Stderr: io.MultiWriter(output, stderr),
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	start := time.Now()
	id, err := e.runtime.Start(runCtx, e.containerSpec(req), stdio)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Outcome{}, appErr.Wrapf(ctxErr, appErr.JudgeSystemError, "execution cancelled")
		}
		return Outcome{}, appErr.Wrapf(err, appErr.SandboxUnavailable, "start container failed: %v", err)
	}
	defer e.remove(ctx, id)

	var timedOut atomic.Bool
	var wg sync.WaitGroup
	done := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		var wallTimer <-chan time.Time
		if req.Timeout > 0 {
			timer := time.NewTimer(req.Timeout)
			defer timer.Stop()
			wallTimer = timer.C
		}
		select {
		case <-wallTimer:
			timedOut.Store(true)
			e.kill(ctx, req.Name, id)
			cancelRun()
		case <-ctx.Done():
			e.kill(ctx, req.Name, id)
		case <-done:
		}
	}()

	state, waitErr := e.runtime.Wait(runCtx, id)
	close(done)
	wg.Wait()
	elapsed := time.Since(start)

	outcome := Outcome{
		OutputFile: req.OutputFile,
		ExitCode:   state.ExitCode,
		Duration:   elapsed,
	}
	if timedOut.Load() {
		outcome.Status = StatusTimeout
		outcome.Diagnostic = "Time Limit Exceeded"
		return outcome, nil
	}
	if err := ctx.Err(); err != nil {
		return outcome, appErr.Wrapf(err, appErr.JudgeSystemError, "execution cancelled")
	}
	if waitErr != nil {
		return outcome, appErr.Wrapf(waitErr, appErr.SandboxUnavailable, "wait container failed: %v", waitErr)
	}
	return classify(outcome, state.OOMKilled, strings.TrimSpace(stderr.String())), nil
}

func classify(outcome Outcome, oomKilled bool, stderr string) Outcome {
	switch {
	case oomKilled || outcome.ExitCode == exitOOMKilled || hasOOMMarker(stderr):
		outcome.Status = StatusMemoryExceeded
		outcome.Diagnostic = "Memory Limit Exceeded"
	case stderr != "":
		outcome.Status = StatusRuntimeError
		outcome.Diagnostic = stderr
	case outcome.ExitCode != 0:
		outcome.Status = StatusRuntimeError
		outcome.Diagnostic = fmt.Sprintf("exited with code %d", outcome.ExitCode)
	default:
		outcome.Status = StatusSuccess
	}
	return outcome
}

func hasOOMMarker(stderr string) bool {
	return strings.Contains(stderr, "Killed") || strings.Contains(stderr, "Out of memory")
}

// kill stops a container, bounded by the kill timeout and detached from ctx
// cancellation.
func (e *Executor) kill(ctx context.Context, name, id string) {
	killCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.KillTimeout)
	defer cancel()
	if err := e.runtime.Kill(killCtx, id); err != nil {
		logger.Warn(ctx, "kill container failed", zap.String("container", name), zap.Error(err))
	}
}

func (e *Executor) remove(ctx context.Context, id string) {
	removeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.KillTimeout)
	defer cancel()
	if err := e.runtime.Remove(removeCtx, id); err != nil {
		logger.Warn(ctx, "remove container failed", zap.String("container_id", id), zap.Error(err))
	}
}

func (e *Executor) containerSpec(req Request) ContainerSpec {
	return ContainerSpec{
		Name:        req.Name,
		Image:       req.Image,
		Cmd:         req.Command,
		HostDir:     req.HostDir,
		WorkDir:     containerWorkDir,
		MemoryBytes: req.MemoryMB * 1024 * 1024,
		NanoCPUs:    int64(e.cfg.CPUs * 1e9),
		PidsLimit:   e.cfg.PidsLimit,
		Network:     e.cfg.Network,
	}
}

func validateRequest(req Request) error {
	switch {
	case req.Name == "":
		return appErr.New(appErr.InvalidParams).WithMessage("container name is required")
	case req.HostDir == "":
		return appErr.New(appErr.InvalidParams).WithMessage("host dir is required")
	case req.Image == "":
		return appErr.New(appErr.InvalidParams).WithMessage("image is required")
	case len(req.Command) == 0:
		return appErr.New(appErr.InvalidParams).WithMessage("command is required")
	case req.InputFile == "" || req.OutputFile == "":
		return appErr.New(appErr.InvalidParams).WithMessage("input and output files are required")
	}
	return nil
}
