package hg

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Tool represents a resolved Mercurial executable. All repository operations
// (clone, update, identify) are delegated to it; this package never inspects
// repository internals itself.
type Tool struct {
	path   string
	topics func() bool
}

func newTool(path string) *Tool {
	t := &Tool{path: path}
	// Probing spawns a process; compute at most once per tool.
	t.topics = sync.OnceValue(t.probeTopics)
	return t
}

// New returns a Tool that invokes the executable at path. The path is not
// validated until the first invocation.
func New(path string) *Tool {
	return newTool(path)
}

// DetectTool finds the Mercurial executable by first checking the
// REPO2DOCKER_HG env var, then searching PATH for hg.
func DetectTool() (*Tool, error) {
	if override := os.Getenv("REPO2DOCKER_HG"); override != "" {
		path, err := exec.LookPath(override)
		if err != nil {
			return nil, fmt.Errorf("REPO2DOCKER_HG=%q not found in PATH: %w", override, err)
		}
		return newTool(path), nil
	}

	path, err := exec.LookPath("hg")
	if err != nil {
		return nil, fmt.Errorf("mercurial not found: install hg or set REPO2DOCKER_HG")
	}
	return newTool(path), nil
}

var defaultTool = sync.OnceValues(DetectTool)

// Default returns the process-wide Tool, resolved once on first use.
func Default() (*Tool, error) {
	return defaultTool()
}

var available = sync.OnceValue(func() bool {
	t, err := Default()
	if err != nil {
		return false
	}
	_, err = t.Version(context.Background())
	return err == nil
})

// Available reports whether the Mercurial executable can actually be
// invoked. The probe runs the tool once and caches the answer for the
// process lifetime.
func Available() bool {
	return available()
}

// SupportsTopics reports whether the default tool has the topic extension.
func SupportsTopics() bool {
	t, err := Default()
	if err != nil {
		return false
	}
	return t.SupportsTopics()
}

// Path returns the resolved path of the executable.
func (t *Tool) Path() string {
	return t.path
}

// Version returns the tool's version banner, e.g.
// "Mercurial Distributed SCM (version 6.8)".
func (t *Tool) Version(ctx context.Context) (string, error) {
	return t.Output(ctx, "", "version", "-q")
}

// SupportsTopics reports whether the topic extension (shipped with the
// evolve suite) is enabled for this tool. Computed once per Tool.
func (t *Tool) SupportsTopics() bool {
	return t.topics()
}

func (t *Tool) probeTopics() bool {
	out, err := t.Output(context.Background(), "", "version", "-v")
	if err != nil {
		return false
	}
	return hasTopicExtension(out)
}

// hasTopicExtension inspects verbose version output for the evolve suite,
// which provides the topic extension. Enabled extensions are listed one per
// line, name first.
func hasTopicExtension(versionOutput string) bool {
	return strings.Contains(versionOutput, " evolve ")
}

// command prepares an invocation. HGPLAIN suppresses user configuration
// that changes output formats (color, pager, localization) without
// disabling extensions.
func (t *Tool) command(ctx context.Context, dir string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, t.path, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "HGPLAIN=1")
	return cmd
}

// Output runs hg with args to completion and returns its trimmed standard
// output. dir may be empty to run in the current directory.
func (t *Tool) Output(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := t.command(ctx, dir, args...)
	logrus.WithField("dir", dir).Debugf("hg %s", strings.Join(args, " "))

	out, err := cmd.Output()
	if err != nil {
		return "", execError(err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Start begins running hg with args in dir and returns a stream over its
// standard output. The process runs only as long as the stream is consumed:
// callers must drain it to completion or Close it.
func (t *Tool) Start(ctx context.Context, dir string, args ...string) (*Lines, error) {
	cmd := t.command(ctx, dir, args...)
	logrus.WithField("dir", dir).Debugf("hg %s", strings.Join(args, " "))

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	return &Lines{cmd: cmd, scanner: bufio.NewScanner(stdout), stderr: &stderr}, nil
}

// Lines streams the standard output of a running hg command one line at a
// time. The subprocess's lifetime is tied to the stream: it is reaped when
// the output is exhausted or the stream is closed early.
type Lines struct {
	cmd     *exec.Cmd
	scanner *bufio.Scanner
	stderr  *bytes.Buffer
	line    string
	err     error
	done    bool
}

// Next advances to the next output line, blocking until the process
// produces one. It returns false once output is exhausted and the process
// has been reaped; Err reports how it exited.
func (l *Lines) Next() bool {
	if l.done {
		return false
	}
	if l.scanner.Scan() {
		l.line = l.scanner.Text()
		return true
	}
	l.finish()
	return false
}

// Line returns the line read by the most recent successful call to Next.
func (l *Lines) Line() string {
	return l.line
}

// Err returns how the command terminated: nil after a clean exit, otherwise
// the exit error with any stderr output the tool produced.
func (l *Lines) Err() error {
	return l.err
}

func (l *Lines) finish() {
	l.done = true
	err := l.cmd.Wait()
	if err == nil {
		err = l.scanner.Err()
	}
	if err != nil {
		if msg := strings.TrimSpace(l.stderr.String()); msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
	}
	l.err = err
}

// Close terminates a stream that was abandoned before being drained,
// killing the process if it is still running. Closing an exhausted stream
// is a no-op.
func (l *Lines) Close() error {
	if l.done {
		return nil
	}
	l.done = true
	if l.cmd.Process != nil {
		l.cmd.Process.Kill()
	}
	// Ignore the exit status; the process was killed on purpose.
	l.cmd.Wait()
	return nil
}

func execError(err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
	}
	return err
}
