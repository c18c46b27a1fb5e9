// Package cpp finds a C preprocessor on the host and runs it over the aubio header.
package cpp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/phuslu/log"
)

var (
	ErrNoCompiler     = errors.New("no C compiler found, install gcc, clang or MSVC and make sure it is in PATH")
	ErrHeaderNotFound = errors.New("could not find include file")
	ErrEmptyOutput    = errors.New("preprocessor output is empty")
)

const DefaultProbeTimeout = 5 * time.Second

// Strategy tries to resolve a compiler command. ok is false when the
// strategy does not apply or its compiler did not answer.
type Strategy func(ctx context.Context) (cmd []string, ok bool)

// Override accepts a user supplied compiler command as is.
func Override(command string) Strategy {
	return func(context.Context) ([]string, bool) {
		fields := strings.Fields(command)
		return fields, len(fields) > 0
	}
}

// Probe runs the named compiler with versionFlag and accepts it when it exits cleanly within timeout.
func Probe(name, versionFlag string, timeout time.Duration) Strategy {
	return func(ctx context.Context) ([]string, bool) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		cmd := exec.CommandContext(ctx, name, versionFlag)
		if err := cmd.Run(); err != nil {
			return nil, false
		}
		return []string{name}, true
	}
}

// DefaultStrategies is the resolution order used when nothing else is configured.
func DefaultStrategies(override string, timeout time.Duration) []Strategy {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}

	strategies := []Strategy{
		Override(override),
		Probe("gcc", "--version", timeout),
		Probe("clang", "--version", timeout),
		Probe("cc", "--version", timeout),
	}
	if runtime.GOOS == "windows" {
		strategies = append(strategies, Probe("cl.exe", "/?", timeout))
	}

	return strategies
}

type Preprocessor struct {
	command []string
	logger  *log.Logger
}

// Find returns a Preprocessor for the first strategy that succeeds.
func Find(ctx context.Context, logger *log.Logger, strategies ...Strategy) (*Preprocessor, error) {
	for _, s := range strategies {
		cmd, ok := s(ctx)
		if !ok {
			continue
		}

		logger.Debug().Str("compiler", strings.Join(cmd, " ")).Msg("resolved C compiler")
		return New(cmd, logger), nil
	}

	return nil, ErrNoCompiler
}

// New wraps an already resolved compiler command.
func New(command []string, logger *log.Logger) *Preprocessor {
	return &Preprocessor{
		command: command,
		logger:  logger,
	}
}

// Command returns the compiler command including the preprocess-only flag,
// or nil when no compiler was given.
func (p *Preprocessor) Command() []string {
	if len(p.command) == 0 {
		return nil
	}

	cmd := append([]string(nil), p.command...)

	if isMSVC(cmd[0]) {
		return append(cmd, "/E")
	}
	return append(cmd, "-E")
}

func isMSVC(name string) bool {
	return strings.Contains(name, "cl.exe") || name == "cl"
}

// Args builds the full preprocessor invocation for header.
func (p *Preprocessor) Args(header string, useDouble bool) []string {
	args := p.Command()

	args = append(args, "-DAUBIO_UNSTABLE=1")
	if useDouble {
		args = append(args, "-DHAVE_AUBIO_DOUBLE=1")
	}

	args = append(args, "-I"+filepath.Dir(header), header)

	return args
}

// Lines preprocesses header and returns its output split into trimmed lines.
func (p *Preprocessor) Lines(ctx context.Context, header string, useDouble bool) ([]string, error) {
	if len(p.command) == 0 {
		return nil, ErrNoCompiler
	}

	info, err := os.Stat(header)
	if err != nil || info.IsDir() {
		return nil, fmt.Errorf("%w %s", ErrHeaderNotFound, header)
	}

	args := p.Args(header, useDouble)
	cmdline := strings.Join(args, " ")
	p.logger.Info().Msgf("Running command: %s", cmdline)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// the exit status is not trusted, only the produced output
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("running %q: %w", cmdline, err)
		}
	}

	if stderr.Len() > 0 {
		p.logger.Warn().Msgf("preprocessor produced errors or warnings:\n%s", stderr.String())
	}

	if stdout.Len() == 0 {
		if stderr.Len() > 0 {
			return nil, fmt.Errorf("%w: running command %q failed with stderr: %q", ErrEmptyOutput, cmdline, stderr.String())
		}
		return nil, fmt.Errorf("%w: running command %q failed with no stdout or stderr", ErrEmptyOutput, cmdline)
	}

	raw := strings.Split(stdout.String(), "\n")
	lines := make([]string, len(raw))
	for i, l := range raw {
		lines[i] = strings.TrimSpace(l)
	}

	return lines, nil
}
