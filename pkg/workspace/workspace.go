// Package workspace manages the directories fetched content lands in when
// the caller does not name a target.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	DefaultRoot  = ".repo2docker"
	checkoutsDir = "checkouts"
	dirPerm      = 0o755
)

// Workspace is a directory tree holding fetched checkouts, with a TOML
// record per checkout describing what was fetched into it. Records are
// sidecars next to the checkout directory; the working copy itself is
// never touched.
type Workspace struct {
	root string
}

func New(root string) *Workspace {
	return &Workspace{root: root}
}

// Default returns the workspace under the user's home directory.
func Default() (*Workspace, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("determining home directory: %w", err)
	}
	return New(filepath.Join(home, DefaultRoot)), nil
}

// Root returns the workspace root directory.
func (w *Workspace) Root() string {
	return w.root
}

// Record describes one fetched checkout.
type Record struct {
	Name      string    `toml:"name"`
	Repo      string    `toml:"repo"`
	Ref       string    `toml:"ref,omitempty"`
	ContentID string    `toml:"content_id"`
	FetchedAt time.Time `toml:"fetched_at"`
}

// Checkout allocates a fresh, empty directory for fetching repo into and
// returns its path. The name is derived from the locator's base name plus
// a numeric suffix; creating the directory claims the name, so concurrent
// callers never share one.
func (w *Workspace) Checkout(repo string) (string, error) {
	if err := os.MkdirAll(filepath.Join(w.root, checkoutsDir), dirPerm); err != nil {
		return "", fmt.Errorf("creating workspace: %w", err)
	}

	base := slug(repo)
	for n := 1; ; n++ {
		dir := filepath.Join(w.root, checkoutsDir, fmt.Sprintf("%s-%d", base, n))
		err := os.Mkdir(dir, dirPerm)
		if err == nil {
			return dir, nil
		}
		if !os.IsExist(err) {
			return "", fmt.Errorf("creating checkout directory: %w", err)
		}
	}
}

// Dir returns the checkout directory for a record name.
func (w *Workspace) Dir(name string) string {
	return filepath.Join(w.root, checkoutsDir, name)
}

func (w *Workspace) recordPath(name string) string {
	return filepath.Join(w.root, checkoutsDir, name+".toml")
}

// SaveRecord persists the record as a sidecar next to the checkout it
// describes.
func (w *Workspace) SaveRecord(rec Record) error {
	data, err := toml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}
	path := w.recordPath(rec.Name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// List returns the records of all checkouts in the workspace, in name
// order. A missing workspace is an empty one.
func (w *Workspace) List() ([]Record, error) {
	entries, err := os.ReadDir(filepath.Join(w.root, checkoutsDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading workspace: %w", err)
	}

	var records []Record
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".toml") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(w.root, checkoutsDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading record %s: %w", entry.Name(), err)
		}
		var rec Record
		if err := toml.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("unmarshaling record %s: %w", entry.Name(), err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Remove deletes a checkout directory and its record.
func (w *Workspace) Remove(name string) error {
	if err := os.RemoveAll(w.Dir(name)); err != nil {
		return fmt.Errorf("removing checkout %s: %w", name, err)
	}
	if err := os.Remove(w.recordPath(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing record %s: %w", name, err)
	}
	return nil
}

// slug derives a filesystem-friendly checkout name from a repository
// locator, local path or URL.
func slug(repo string) string {
	trimmed := strings.TrimRight(repo, "/\\")
	base := trimmed
	if i := strings.LastIndexAny(trimmed, "/\\"); i >= 0 {
		base = trimmed[i+1:]
	}

	var b strings.Builder
	for _, r := range strings.ToLower(base) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '.', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}

	out := strings.Trim(b.String(), "-.")
	if out == "" {
		return "checkout"
	}
	return out
}
