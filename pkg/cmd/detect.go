package cmd

import (
	"fmt"

	"github.com/johnhoman/repo2docker/pkg/contentprovider"
	"github.com/spf13/cobra"
)

func newDetectCmd() *cobra.Command {
	detectCmd := &cobra.Command{
		Use:   "detect [path]",
		Short: "Check whether a local path is a Mercurial checkout",
		Long:  "Inspects a local path without running the tool and prints the fetch spec a provider would use for it.",
		Args:  cobra.ExactArgs(1),
		RunE:  runDetect,
	}

	detectCmd.Flags().String("output", "text", "result format: text or yaml")

	return detectCmd
}

func runDetect(cmd *cobra.Command, args []string) error {
	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	provider := &contentprovider.Mercurial{}
	spec := provider.Detect(args[0])
	if spec == nil {
		return fmt.Errorf("%s is not a mercurial repository", args[0])
	}

	if output == "yaml" {
		return printYAML(cmd, spec)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Mercurial repository at %s\n", spec.Repo)
	return nil
}
