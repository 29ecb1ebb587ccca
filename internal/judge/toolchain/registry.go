// Package toolchain holds the closed set of supported languages and builds
// their compile and run argument vectors.
package toolchain

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	appErr "github.com/Avadhutgiri/my-online-judge/pkg/errors"

	"github.com/google/shlex"
)

// Language identifies a supported toolchain.
type Language string

const (
	Python Language = "python"
	Cpp    Language = "cpp"
	Java   Language = "java"
)

var javaClassPattern = regexp.MustCompile(`public\s+class\s+(\w+)`)

// Toolchain is the immutable configuration of one language.
type Toolchain struct {
	Language     Language
	Extension    string
	Image        string
	Timeout      time.Duration
	MemoryMB     int64
	CompileFlags []string
}

// Program names the staged artifacts of one execution.
type Program struct {
	SourceFile string
	ExecName   string
	ClassName  string
}

// NeedsCompile reports whether the language has a host compile step.
func (t Toolchain) NeedsCompile() bool {
	switch t.Language {
	case Cpp, Java:
		return true
	default:
		return false
	}
}

// CompileArgs returns the compiler argv, or nil when there is no compile step.
func (t Toolchain) CompileArgs(p Program) []string {
	switch t.Language {
	case Cpp:
		args := []string{"g++"}
		args = append(args, t.CompileFlags...)
		return append(args, "-o", p.ExecName, p.SourceFile)
	case Java:
		args := []string{"javac"}
		args = append(args, t.CompileFlags...)
		return append(args, p.SourceFile)
	default:
		return nil
	}
}

// RunArgs returns the argv executed inside the sandbox image.
func (t Toolchain) RunArgs(p Program) []string {
	switch t.Language {
	case Cpp:
		return []string{"./" + p.ExecName}
	case Java:
		return []string{"java", p.ClassName}
	default:
		return []string{"python", p.SourceFile}
	}
}

// ProgramFor derives the source and executable names for an execution.
// Java sources are named after their public class.
func (t Toolchain) ProgramFor(code, executionID string) (Program, error) {
	if t.Language == Java {
		className, ok := JavaClassName(code)
		if !ok {
			return Program{}, appErr.New(appErr.CompilationError).WithMessage("No public entry point found")
		}
		return Program{
			SourceFile: className + t.Extension,
			ExecName:   className,
			ClassName:  className,
		}, nil
	}
	base := "submission_" + executionID
	return Program{
		SourceFile: base + t.Extension,
		ExecName:   base + "_exec",
	}, nil
}

// JavaClassName extracts the public class declared in a Java source.
func JavaClassName(code string) (string, bool) {
	match := javaClassPattern.FindStringSubmatch(code)
	if len(match) < 2 {
		return "", false
	}
	return match[1], true
}

// Override adjusts a built-in toolchain from operator config.
type Override struct {
	Image        string        `yaml:"image"`
	Timeout      time.Duration `yaml:"timeout"`
	MemoryMB     int64         `yaml:"memoryMB"`
	CompileFlags string        `yaml:"compileFlags"`
}

// Registry looks up toolchains by language name.
type Registry struct {
	toolchains map[Language]Toolchain
}

// Defaults returns the built-in toolchains.
func Defaults() map[Language]Toolchain {
	return map[Language]Toolchain{
		Python: {
			Language:  Python,
			Extension: ".py",
			Image:     "python:3.9-alpine",
			Timeout:   5 * time.Second,
			MemoryMB:  256,
		},
		Cpp: {
			Language:  Cpp,
			Extension: ".cpp",
			Image:     "gcc:latest",
			Timeout:   3 * time.Second,
			MemoryMB:  256,
		},
		Java: {
			Language:  Java,
			Extension: ".java",
			Image:     "openjdk:17-jdk-slim",
			Timeout:   5 * time.Second,
			MemoryMB:  256,
		},
	}
}

// NewRegistry builds a registry from the defaults with overrides applied.
// Overrides for unknown languages are rejected.
func NewRegistry(overrides map[string]Override) (*Registry, error) {
	toolchains := Defaults()
	for name, ov := range overrides {
		lang := Language(strings.ToLower(strings.TrimSpace(name)))
		tc, ok := toolchains[lang]
		if !ok {
			return nil, fmt.Errorf("override for unknown language %q", name)
		}
		if ov.Image != "" {
			tc.Image = ov.Image
		}
		if ov.Timeout > 0 {
			tc.Timeout = ov.Timeout
		}
		if ov.MemoryMB > 0 {
			tc.MemoryMB = ov.MemoryMB
		}
		if strings.TrimSpace(ov.CompileFlags) != "" {
			if !tc.NeedsCompile() {
				return nil, fmt.Errorf("language %q has no compile step", name)
			}
			flags, err := shlex.Split(ov.CompileFlags)
			if err != nil {
				return nil, fmt.Errorf("parse compile flags for %q: %w", name, err)
			}
			tc.CompileFlags = flags
		}
		toolchains[lang] = tc
	}
	return &Registry{toolchains: toolchains}, nil
}

// Lookup returns the toolchain for a language.
func (r *Registry) Lookup(language string) (Toolchain, error) {
	tc, ok := r.toolchains[Language(language)]
	if !ok {
		return Toolchain{}, appErr.New(appErr.LanguageNotSupported).WithDetail("language", language)
	}
	return tc, nil
}

// Languages lists the registered language names in sorted order.
func (r *Registry) Languages() []string {
	names := make([]string, 0, len(r.toolchains))
	for lang := range r.toolchains {
		names = append(names, string(lang))
	}
	sort.Strings(names)
	return names
}
