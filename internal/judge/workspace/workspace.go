// Package workspace manages the per-execution scratch directories that hold
// sources, test inputs and program outputs.
package workspace

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	appErr "github.com/Avadhutgiri/my-online-judge/pkg/errors"
)

const (
	InputsDir   = "inputs"
	OutputsDir  = "outputs"
	ExpectedDir = "expected_outputs"

	dirPrefix = "submission_"
)

// Manager creates workspaces under a local root.
type Manager struct {
	root     string
	hostRoot string
}

// NewManager creates a manager rooted at root. hostRoot, when set, is the
// same directory as seen by the container runtime host.
func NewManager(root, hostRoot string) (*Manager, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("workspace root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("create workspace root: %w", err)
	}
	return &Manager{root: abs, hostRoot: hostRoot}, nil
}

// Root returns the absolute local root.
func (m *Manager) Root() string {
	return m.root
}

// Workspace is a directory tree owned by one execution.
type Workspace struct {
	ID   string
	Root string

	hostRoot string
	once     sync.Once
	err      error
}

// Acquire creates the workspace tree for an execution id. Existing
// directories are reused.
func (m *Manager) Acquire(executionID string) (*Workspace, error) {
	if executionID == "" || strings.ContainsAny(executionID, `/\`) || executionID == "." || executionID == ".." {
		return nil, appErr.New(appErr.InvalidParams).WithMessagef("invalid execution id %q", executionID)
	}
	name := dirPrefix + executionID
	root := filepath.Join(m.root, name)
	for _, dir := range []string{InputsDir, OutputsDir, ExpectedDir} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0755); err != nil {
			return nil, appErr.Wrapf(err, appErr.JudgeSystemError, "create workspace failed")
		}
	}
	hostRoot := root
	if m.hostRoot != "" {
		hostRoot = filepath.Join(m.hostRoot, name)
	}
	return &Workspace{ID: executionID, Root: root, hostRoot: hostRoot}, nil
}

// Release removes the workspace tree. Later calls return the first result.
func (m *Manager) Release(ws *Workspace) error {
	if ws == nil {
		return nil
	}
	ws.once.Do(func() {
		if err := os.RemoveAll(ws.Root); err != nil {
			ws.err = appErr.Wrapf(err, appErr.JudgeSystemError, "remove workspace failed")
		}
	})
	return ws.err
}

// HostPath is the workspace root as mounted into containers.
func (ws *Workspace) HostPath() string {
	return ws.hostRoot
}

// Path joins a workspace-relative path.
func (ws *Workspace) Path(elem ...string) string {
	return filepath.Join(append([]string{ws.Root}, elem...)...)
}

// StageSource writes code verbatim to filename at the workspace root.
func (ws *Workspace) StageSource(filename, code string) (string, error) {
	target, err := ws.safeJoin(filename)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(target, []byte(code), 0644); err != nil {
		return "", appErr.Wrapf(err, appErr.JudgeSystemError, "write source failed")
	}
	return target, nil
}

// AddSource copies r to filename at the workspace root.
func (ws *Workspace) AddSource(filename string, r io.Reader) error {
	_, err := ws.writeFrom(filename, r)
	return err
}

// WriteInput stores a run input under inputs/.
func (ws *Workspace) WriteInput(name, data string) (string, error) {
	target, err := ws.safeJoin(filepath.Join(InputsDir, name))
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(target, []byte(data), 0644); err != nil {
		return "", appErr.Wrapf(err, appErr.JudgeSystemError, "write input failed")
	}
	return target, nil
}

// OutputPath returns the path of an output file under outputs/.
func (ws *Workspace) OutputPath(name string) string {
	return ws.Path(OutputsDir, name)
}

// CopyFile copies src into the workspace as name.
func (ws *Workspace) CopyFile(src, name string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()
	return ws.writeFrom(name, in)
}

func (ws *Workspace) writeFrom(rel string, r io.Reader) (string, error) {
	target, err := ws.safeJoin(rel)
	if err != nil {
		return "", err
	}
	out, err := os.Create(target)
	if err != nil {
		return "", appErr.Wrapf(err, appErr.JudgeSystemError, "create %s failed", rel)
	}
	defer out.Close()
	if _, err := io.Copy(out, r); err != nil {
		return "", appErr.Wrapf(err, appErr.JudgeSystemError, "write %s failed", rel)
	}
	return target, nil
}

func (ws *Workspace) safeJoin(rel string) (string, error) {
	if rel == "" {
		return "", appErr.ValidationError("path", "required")
	}
	clean := filepath.Clean(rel)
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", appErr.New(appErr.InvalidParams).WithMessage("path traversal detected")
	}
	full := filepath.Join(ws.Root, clean)
	if !strings.HasPrefix(full, filepath.Clean(ws.Root)+string(filepath.Separator)) {
		return "", appErr.New(appErr.InvalidParams).WithMessage("path traversal detected")
	}
	return full, nil
}

// TestCase pairs an input with its expected output. Index is zero-based.
type TestCase struct {
	Index        int
	InputPath    string
	ExpectedPath string
}

// IsInputFile reports whether name is a test input (input*.txt).
func IsInputFile(name string) bool {
	return strings.HasPrefix(name, "input") && strings.HasSuffix(name, ".txt")
}

// IsOutputFile reports whether name is an expected output (output*.txt).
func IsOutputFile(name string) bool {
	return strings.HasPrefix(name, "output") && strings.HasSuffix(name, ".txt")
}

// AddTestFile stores one test data file by name. Names that are neither
// inputs nor outputs are skipped.
func (ws *Workspace) AddTestFile(name string, r io.Reader) error {
	name = filepath.Base(name)
	switch {
	case IsInputFile(name):
		_, err := ws.writeFrom(filepath.Join(InputsDir, name), r)
		return err
	case IsOutputFile(name):
		_, err := ws.writeFrom(filepath.Join(ExpectedDir, name), r)
		return err
	default:
		return nil
	}
}

// StageTests copies input*.txt and output*.txt from a local directory.
func (ws *Workspace) StageTests(sourceDir string) error {
	entries, err := os.ReadDir(sourceDir)
	if err != nil {
		return appErr.Wrapf(err, appErr.TestCaseNotFound, "read test directory failed")
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !IsInputFile(name) && !IsOutputFile(name) {
			continue
		}
		f, err := os.Open(filepath.Join(sourceDir, name))
		if err != nil {
			return appErr.Wrapf(err, appErr.JudgeSystemError, "open test file failed")
		}
		err = ws.AddTestFile(name, f)
		f.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// TestCases pairs staged inputs and expected outputs by sorted filename.
func (ws *Workspace) TestCases() ([]TestCase, error) {
	inputs, err := sortedFiles(ws.Path(InputsDir))
	if err != nil {
		return nil, err
	}
	expected, err := sortedFiles(ws.Path(ExpectedDir))
	if err != nil {
		return nil, err
	}
	if len(inputs) != len(expected) {
		return nil, appErr.New(appErr.TestDataMismatch).
			WithDetail("inputs", len(inputs)).
			WithDetail("outputs", len(expected))
	}
	if len(inputs) == 0 {
		return nil, appErr.New(appErr.TestDataMismatch).WithMessage("No test cases found")
	}
	cases := make([]TestCase, len(inputs))
	for i := range inputs {
		cases[i] = TestCase{
			Index:        i,
			InputPath:    ws.Path(InputsDir, inputs[i]),
			ExpectedPath: ws.Path(ExpectedDir, expected[i]),
		}
	}
	return cases, nil
}

func sortedFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.JudgeSystemError, "list %s failed", filepath.Base(dir))
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
