package contentprovider

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/johnhoman/repo2docker/pkg/hg"
)

// requireHg skips the test when Mercurial is not installed. Setting
// HG_REQUIRED promotes the skip to a failure, for environments that are
// expected to provide the tool.
func requireHg(t *testing.T) {
	t.Helper()
	if hg.Available() {
		return
	}
	if os.Getenv("HG_REQUIRED") != "" {
		t.Fatal("HG_REQUIRED is set but mercurial is not available")
	}
	t.Skip("mercurial not available")
}

// requireTopics additionally skips when the topic extension is missing,
// with HG_EVOLVE_REQUIRED as the escalation knob.
func requireTopics(t *testing.T) {
	t.Helper()
	requireHg(t)
	if hg.SupportsTopics() {
		return
	}
	if os.Getenv("HG_EVOLVE_REQUIRED") != "" {
		t.Fatal("HG_EVOLVE_REQUIRED is set but the topic extension is not available")
	}
	t.Skip("topic extension not available")
}

func hgCommand(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("hg", args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("hg %v: %v\n%s", args, err, out)
	}
}

func hgOutput(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("hg", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		t.Fatalf("hg %v: %v", args, err)
	}
	return strings.TrimSpace(string(out))
}

// setupHgRepo creates a Mercurial repository with one commit adding the
// file "test", plus a commit on topic "test-topic" when the topic extension
// is available (returning the working copy to default afterwards). It
// returns the repository path and the node id of the default head.
func setupHgRepo(t *testing.T) (repoDir, nodeID string) {
	t.Helper()

	repoDir = t.TempDir()
	hgCommand(t, repoDir, "init")

	hgrc := "[ui]\nusername = Tester <tester@example.com>\n"
	if err := os.WriteFile(filepath.Join(repoDir, ".hg", "hgrc"), []byte(hgrc), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(repoDir, "test"), []byte("Hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	hgCommand(t, repoDir, "add", "test")
	hgCommand(t, repoDir, "commit", "-m", "Test commit")

	if hg.SupportsTopics() {
		hgCommand(t, repoDir, "topic", "test-topic")
		hgCommand(t, repoDir, "commit", "-m", "Test commit in topic test-topic")
		hgCommand(t, repoDir, "update", "default")
	}

	return repoDir, hgOutput(t, repoDir, "identify", "-i")
}

func TestDetect(t *testing.T) {
	tmp := t.TempDir()

	hgDir := filepath.Join(tmp, "hg-checkout")
	os.MkdirAll(filepath.Join(hgDir, ".hg"), 0o755)

	gitDir := filepath.Join(tmp, "git-checkout")
	os.MkdirAll(filepath.Join(gitDir, ".git"), 0o755)

	plainDir := filepath.Join(tmp, "plain")
	os.MkdirAll(plainDir, 0o755)

	markerFileDir := filepath.Join(tmp, "marker-file")
	os.MkdirAll(markerFileDir, 0o755)
	os.WriteFile(filepath.Join(markerFileDir, ".hg"), []byte{}, 0o644)

	tests := map[string]struct {
		locator string
		want    bool
	}{
		"mercurial checkout": {
			locator: hgDir,
			want:    true,
		},
		"git checkout": {
			locator: gitDir,
			want:    false,
		},
		"directory without metadata": {
			locator: plainDir,
			want:    false,
		},
		"metadata marker is a file": {
			locator: markerFileDir,
			want:    false,
		},
		"path does not exist": {
			locator: filepath.Join(tmp, "this-is-not-a-directory"),
			want:    false,
		},
		"remote url": {
			locator: "https://github.com/jupyterhub/repo2docker",
			want:    false,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			m := &Mercurial{}
			got := m.Detect(tc.locator)
			if !tc.want {
				if got != nil {
					t.Fatalf("Detect(%q) = %+v, want nil", tc.locator, got)
				}
				return
			}
			if got == nil {
				t.Fatalf("Detect(%q) = nil, want a spec", tc.locator)
			}
			if got.Repo != tc.locator {
				t.Errorf("Detect(%q).Repo = %q, want %q", tc.locator, got.Repo, tc.locator)
			}
			if got.Ref != "" {
				t.Errorf("Detect(%q).Ref = %q, want empty", tc.locator, got.Ref)
			}
		})
	}
}

func TestUpdateStrategies(t *testing.T) {
	tests := map[string]struct {
		ref    string
		topics bool
		want   [][]string
	}{
		"without topics": {
			ref:    "v1.0",
			topics: false,
			want: [][]string{
				{"update", "--clean", "v1.0"},
			},
		},
		"topic tried after native namespaces": {
			ref:    "feature-x",
			topics: true,
			want: [][]string{
				{"update", "--clean", "feature-x"},
				{"update", "--clean", "--rev", `max(topic("feature-x"))`},
			},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got := updateStrategies(tc.ref, tc.topics)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("updateStrategies(%q, %v) = %v, want %v", tc.ref, tc.topics, got, tc.want)
			}
		})
	}
}

func TestFetch(t *testing.T) {
	requireHg(t)
	upstream, nodeID := setupHgRepo(t)

	target := t.TempDir()
	m := &Mercurial{}
	progress := m.Fetch(context.Background(), Spec{Repo: upstream}, target)

	var lines []string
	for progress.Next() {
		lines = append(lines, progress.Line())
	}
	if err := progress.Err(); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(lines) == 0 {
		t.Error("expected progress output while fetching")
	}
	if _, err := os.Stat(filepath.Join(target, "test")); err != nil {
		t.Errorf("expected the file %q in the clone: %v", "test", err)
	}
	if got := m.ContentID(); got != nodeID {
		t.Errorf("ContentID() = %q, want %q", got, nodeID)
	}
}

func TestFetchBadRef(t *testing.T) {
	requireHg(t)
	upstream, _ := setupHgRepo(t)

	m := &Mercurial{}
	progress := m.Fetch(context.Background(), Spec{Repo: upstream, Ref: "does-not-exist"}, t.TempDir())
	for progress.Next() {
	}

	err := progress.Err()
	if err == nil {
		t.Fatal("expected an error updating to a ref that does not exist")
	}
	var refErr *RefError
	if !errors.As(err, &refErr) {
		t.Fatalf("fetch error = %v (%T), want a *RefError", err, err)
	}
	if refErr.Ref != "does-not-exist" {
		t.Errorf("RefError.Ref = %q, want %q", refErr.Ref, "does-not-exist")
	}
	if m.ContentID() != "" {
		t.Errorf("ContentID() = %q, want empty after a failed fetch", m.ContentID())
	}
}

func TestFetchTopic(t *testing.T) {
	requireTopics(t)
	upstream, defaultID := setupHgRepo(t)

	topicID := hgOutput(t, upstream, "identify", "-i", "-r", "topic(test-topic)")
	if topicID == defaultID {
		t.Fatal("fixture bug: the topic head should differ from the default head")
	}

	target := t.TempDir()
	m := &Mercurial{}
	progress := m.Fetch(context.Background(), Spec{Repo: upstream, Ref: "test-topic"}, target)
	for progress.Next() {
	}
	if err := progress.Err(); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(target, "test")); err != nil {
		t.Errorf("expected the file %q in the clone: %v", "test", err)
	}
	if got := m.ContentID(); got != topicID {
		t.Errorf("ContentID() = %q, want the topic head %q", got, topicID)
	}
}

func TestFetchRepeatable(t *testing.T) {
	requireHg(t)
	upstream, _ := setupHgRepo(t)

	var ids []string
	for i := 0; i < 2; i++ {
		m := &Mercurial{}
		progress := m.Fetch(context.Background(), Spec{Repo: upstream}, t.TempDir())
		for progress.Next() {
		}
		if err := progress.Err(); err != nil {
			t.Fatalf("fetch %d failed: %v", i, err)
		}
		ids = append(ids, m.ContentID())
	}
	if ids[0] == "" || ids[0] != ids[1] {
		t.Errorf("content ids differ across identical fetches: %q vs %q", ids[0], ids[1])
	}
}

func TestFetchIsLazy(t *testing.T) {
	requireHg(t)

	m := &Mercurial{}
	progress := m.Fetch(context.Background(), Spec{Repo: "/this/repo/does/not/exist"}, filepath.Join(t.TempDir(), "clone"))
	if err := progress.Err(); err != nil {
		t.Fatalf("Err() = %v before the stream was consumed", err)
	}

	for progress.Next() {
	}
	err := progress.Err()
	if err == nil {
		t.Fatal("expected the fetch of a nonexistent repository to fail")
	}
	var refErr *RefError
	if errors.As(err, &refErr) {
		t.Errorf("clone failures are infrastructure, got %v", err)
	}
}

func TestFetchCloseEarly(t *testing.T) {
	requireHg(t)
	upstream, _ := setupHgRepo(t)

	m := &Mercurial{}
	progress := m.Fetch(context.Background(), Spec{Repo: upstream}, t.TempDir())
	if !progress.Next() {
		t.Fatalf("expected at least one line before closing: %v", progress.Err())
	}
	if err := progress.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if progress.Next() {
		t.Error("Next() should report false after Close")
	}
	if m.ContentID() != "" {
		t.Errorf("ContentID() = %q, want empty for an abandoned fetch", m.ContentID())
	}
}

func TestFetchContextCanceled(t *testing.T) {
	requireHg(t)
	upstream, _ := setupHgRepo(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := &Mercurial{}
	progress := m.Fetch(ctx, Spec{Repo: upstream}, t.TempDir())
	for progress.Next() {
	}
	if progress.Err() == nil {
		t.Fatal("expected an error with a canceled context, got nil")
	}
	if m.ContentID() != "" {
		t.Errorf("ContentID() = %q, want empty after a canceled fetch", m.ContentID())
	}
}
