package contentprovider

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/johnhoman/repo2docker/pkg/hg"
)

// Mercurial fetches content from Mercurial repositories. The zero value is
// ready to use; create a fresh instance per fetch.
type Mercurial struct {
	// Tool overrides the Mercurial executable used for all operations.
	// Nil means the process-wide default.
	Tool *hg.Tool

	contentID string
}

var _ Provider = &Mercurial{}

// Detect reports whether locator is a local Mercurial checkout. It never
// touches the network or spawns a process: the .hg metadata directory is
// the only evidence consulted. The returned spec carries no ref; refs come
// from caller configuration, not from the locator.
func (m *Mercurial) Detect(locator string) *Spec {
	info, err := os.Stat(filepath.Join(locator, ".hg"))
	if err != nil || !info.IsDir() {
		return nil
	}
	return &Spec{Repo: locator}
}

// Fetch clones spec.Repo into target with full history and, when spec.Ref
// is set, updates the working copy to it. The work is lazy: nothing runs
// until the returned stream is consumed. Callers must drain the stream (or
// Close it early) and check its Err before trusting target.
func (m *Mercurial) Fetch(ctx context.Context, spec Spec, target string) *Progress {
	return &Progress{ctx: ctx, m: m, spec: spec, target: target}
}

// ContentID returns the identifier of the fetched revision, exactly as the
// tool reports it. It is empty until a fetch completes successfully.
func (m *Mercurial) ContentID() string {
	return m.contentID
}

func (m *Mercurial) tool() (*hg.Tool, error) {
	if m.Tool != nil {
		return m.Tool, nil
	}
	return hg.Default()
}

// cloneArgs builds the clone invocation. Publishing is disabled so draft
// changesets (and with them topic heads) survive the transfer; the topic
// extension is enabled explicitly when the tool supports it so those heads
// stay resolvable by name in the clone.
func cloneArgs(repo, target string, topics bool) []string {
	args := []string{"clone", repo, target, "--config", "phases.publish=False"}
	if topics {
		args = append(args, "--config", "extensions.topic=")
	}
	return args
}

// updateStrategies returns the update invocations to attempt for ref, in
// priority order. A plain update resolves the tool's native namespaces
// (tags, branches, bookmarks, revision identifiers); when the topic
// extension is available the ref is then tried as a topic name, updating
// to the newest revision on that topic. The first strategy to succeed
// wins, so a native name always shadows a topic of the same name.
func updateStrategies(ref string, topics bool) [][]string {
	strategies := [][]string{
		{"update", "--clean", ref},
	}
	if topics {
		strategies = append(strategies, []string{
			"update", "--clean", "--rev", fmt.Sprintf("max(topic(%q))", ref),
		})
	}
	return strategies
}
