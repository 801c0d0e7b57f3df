package pyversion

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

const localInterpreterScript = `import sys
print(f'{sys.version_info.major}.{sys.version_info.minor}.{sys.version_info.micro}')`

// CommandRunner executes a command and returns its standard output. Unit
// tests substitute a fake to avoid depending on a real python binary.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// LocalInterpreterStrategy asks a locally installed python binary what
// version it is, so the resolver can prefer the interpreter actually
// available on this machine over a remote list of releases.
type LocalInterpreterStrategy struct {
	pythonBin string
	runCmd    CommandRunner
}

var _ DiscoveryStrategy = (*LocalInterpreterStrategy)(nil)

// LocalInterpreterOption configures a LocalInterpreterStrategy.
type LocalInterpreterOption func(*LocalInterpreterStrategy)

func WithPythonBin(bin string) LocalInterpreterOption {
	return func(s *LocalInterpreterStrategy) {
		if bin != "" {
			s.pythonBin = bin
		}
	}
}

func WithCommandRunner(fn CommandRunner) LocalInterpreterOption {
	return func(s *LocalInterpreterStrategy) {
		if fn != nil {
			s.runCmd = fn
		}
	}
}

// NewLocalInterpreterStrategy builds a LocalInterpreterStrategy, defaulting
// to invoking "python3" via exec.CommandContext.
func NewLocalInterpreterStrategy(opts ...LocalInterpreterOption) *LocalInterpreterStrategy {
	s := &LocalInterpreterStrategy{
		pythonBin: "python3",
		runCmd:    defaultRunCmd,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *LocalInterpreterStrategy) Name() string { return "local-interpreter" }

func (s *LocalInterpreterStrategy) Discover(ctx context.Context) ([]string, error) {
	output, err := s.runCmd(ctx, s.pythonBin, "-c", localInterpreterScript)
	if err != nil {
		return nil, fmt.Errorf("running %s: %w", s.pythonBin, err)
	}

	version := strings.TrimSpace(string(output))
	if version == "" {
		return nil, fmt.Errorf("empty version output from %s", s.pythonBin)
	}

	return []string{version}, nil
}

func defaultRunCmd(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}
