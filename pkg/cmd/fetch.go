package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/johnhoman/repo2docker/pkg/contentprovider"
	"github.com/johnhoman/repo2docker/pkg/workspace"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"
)

func newFetchCmd() *cobra.Command {
	fetchCmd := &cobra.Command{
		Use:   "fetch [repo]",
		Short: "Fetch a repository revision into a local directory",
		Long: `Clones a Mercurial repository with full history and updates the working
copy to the requested ref. The ref may be anything the tool resolves
natively (tag, branch, bookmark, revision identifier) or, when the topic
extension is available, a topic name.`,
		Args: cobra.ExactArgs(1),
		RunE: runFetch,
	}

	fetchCmd.Flags().String("ref", "", "revision to check out (defaults to the tip of the default branch)")
	fetchCmd.Flags().String("target", "", "directory to clone into (defaults to a fresh workspace checkout)")
	fetchCmd.Flags().String("output", "text", "result format: text or yaml")

	return fetchCmd
}

type fetchResult struct {
	Repo      string `json:"repo"`
	Ref       string `json:"ref,omitempty"`
	ContentID string `json:"contentId"`
	Dir       string `json:"dir"`
}

func runFetch(cmd *cobra.Command, args []string) error {
	ref, err := cmd.Flags().GetString("ref")
	if err != nil {
		return err
	}
	target, err := cmd.Flags().GetString("target")
	if err != nil {
		return err
	}
	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	tool, err := resolveTool()
	if err != nil {
		return err
	}

	// Without an explicit target the checkout lands in the workspace and
	// gets a record so clean can find it later.
	var ws *workspace.Workspace
	if target == "" {
		ws, err = resolveWorkspace()
		if err != nil {
			return err
		}
		target, err = ws.Checkout(args[0])
		if err != nil {
			return err
		}
	}

	spec := contentprovider.Spec{Repo: args[0], Ref: ref}
	provider := &contentprovider.Mercurial{Tool: tool}

	progress := provider.Fetch(cmd.Context(), spec, target)
	for progress.Next() {
		fmt.Fprintln(cmd.OutOrStdout(), progress.Line())
	}
	if err := progress.Err(); err != nil {
		if ws != nil {
			ws.Remove(filepath.Base(target))
		}
		return err
	}

	if ws != nil {
		rec := workspace.Record{
			Name:      filepath.Base(target),
			Repo:      spec.Repo,
			Ref:       spec.Ref,
			ContentID: provider.ContentID(),
			FetchedAt: time.Now().UTC(),
		}
		if err := ws.SaveRecord(rec); err != nil {
			return err
		}
	}

	result := fetchResult{
		Repo:      spec.Repo,
		Ref:       spec.Ref,
		ContentID: provider.ContentID(),
		Dir:       target,
	}
	if output == "yaml" {
		return printYAML(cmd, result)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Fetched %s into %s\n", result.Repo, result.Dir)
	fmt.Fprintf(cmd.OutOrStdout(), "Content id: %s\n", result.ContentID)
	return nil
}

func printYAML(cmd *cobra.Command, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling output: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}
