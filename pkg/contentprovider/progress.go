package contentprovider

import (
	"context"
	"fmt"

	"github.com/johnhoman/repo2docker/pkg/hg"
)

// Progress streams the tool output of an in-flight fetch. It is a pull
// stream: each Next may block while the underlying invocation produces its
// next line, and subprocesses run only while the caller keeps pulling.
// An abandoned fetch must be Closed to reap the in-flight process.
type Progress struct {
	ctx    context.Context
	m      *Mercurial
	spec   Spec
	target string

	tool     *hg.Tool
	lines    *hg.Lines
	stage    int
	attempts [][]string
	lastErr  error
	line     string
	err      error
	done     bool
}

const (
	stageClone = iota
	stageUpdate
	stageIdentify
)

// Next advances to the next line of tool output, starting the fetch on the
// first call. It returns false once the fetch has finished, successfully
// or not; Err tells which.
func (p *Progress) Next() bool {
	for !p.done {
		if p.lines == nil {
			p.advance()
			continue
		}
		if p.lines.Next() {
			p.line = p.lines.Line()
			return true
		}
		p.collect()
	}
	return false
}

// Line returns the line read by the most recent successful call to Next.
func (p *Progress) Line() string {
	return p.line
}

// Err reports how the fetch ended once Next has returned false: nil after
// a complete fetch, *RefError when the requested ref could not be
// resolved, any other error for infrastructure failures. The target
// directory is trustworthy only when Err is nil.
func (p *Progress) Err() error {
	return p.err
}

// Close abandons the fetch, killing any in-flight invocation. No content
// id is recorded and the target directory is left in an undefined state.
// Closing a finished stream is a no-op.
func (p *Progress) Close() error {
	if p.done {
		return nil
	}
	p.done = true
	if p.lines != nil {
		return p.lines.Close()
	}
	return nil
}

// advance starts the next invocation of the pipeline, or finishes it.
func (p *Progress) advance() {
	switch p.stage {
	case stageClone:
		tool, err := p.m.tool()
		if err != nil {
			p.fail(err)
			return
		}
		p.tool = tool
		lines, err := tool.Start(p.ctx, "", cloneArgs(p.spec.Repo, p.target, tool.SupportsTopics())...)
		if err != nil {
			p.fail(fmt.Errorf("cloning %s: %w", p.spec.Repo, err))
			return
		}
		p.lines = lines
	case stageUpdate:
		if len(p.attempts) == 0 {
			// Every strategy failed: the ref exists in no namespace the
			// provider resolves.
			p.fail(&RefError{Ref: p.spec.Ref, Reason: p.lastErr})
			return
		}
		args := p.attempts[0]
		p.attempts = p.attempts[1:]
		lines, err := p.tool.Start(p.ctx, p.target, args...)
		if err != nil {
			p.fail(fmt.Errorf("updating to %q: %w", p.spec.Ref, err))
			return
		}
		p.lines = lines
	case stageIdentify:
		p.identify()
	}
}

// collect reaps the invocation whose output was just exhausted and decides
// what runs next.
func (p *Progress) collect() {
	err := p.lines.Err()
	p.lines = nil

	switch p.stage {
	case stageClone:
		if err != nil {
			p.fail(fmt.Errorf("cloning %s: %w", p.spec.Repo, err))
			return
		}
		if p.spec.Ref == "" {
			p.stage = stageIdentify
			return
		}
		p.attempts = updateStrategies(p.spec.Ref, p.tool.SupportsTopics())
		p.stage = stageUpdate
	case stageUpdate:
		if err != nil {
			// Keep the failure around for the RefError and fall through
			// to the next strategy.
			p.lastErr = err
			return
		}
		p.stage = stageIdentify
	}
}

// identify asks the tool for the working copy's revision identifier and
// records it as the fetch's content id.
func (p *Progress) identify() {
	out, err := p.tool.Output(p.ctx, p.target, "identify", "-i")
	if err != nil {
		p.fail(fmt.Errorf("identifying %s: %w", p.target, err))
		return
	}
	p.m.contentID = out
	p.done = true
}

func (p *Progress) fail(err error) {
	p.err = err
	p.done = true
}
