// Package contentprovider materializes repository content into local
// directories for image building.
package contentprovider

import (
	"context"
	"fmt"
)

// Spec describes content a provider agreed to fetch: the repository it
// lives in and, optionally, the ref to check out. An empty Ref means the
// tip of the repository's default line of history.
type Spec struct {
	Repo string `json:"repo"`
	Ref  string `json:"ref,omitempty"`
}

// Provider turns a user-supplied locator into repository content on disk.
//
// Detect inspects a locator without side effects and returns a Spec when
// this provider can serve it, nil when it cannot. Fetch materializes the
// content a Spec describes into a target directory, streaming tool output
// while it runs. ContentID identifies what was fetched; it is meaningful
// only after a fetch has completed successfully.
type Provider interface {
	Detect(locator string) *Spec
	Fetch(ctx context.Context, spec Spec, target string) *Progress
	ContentID() string
}

// RefError reports that a requested ref exists in none of the namespaces
// the provider resolves. It is the one failure callers are expected to
// handle; every other fetch error is infrastructure.
type RefError struct {
	Ref    string
	Reason error
}

func (e *RefError) Error() string {
	return fmt.Sprintf("ref %q could not be resolved", e.Ref)
}

func (e *RefError) Unwrap() error {
	return e.Reason
}
