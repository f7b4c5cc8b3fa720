package cmd

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

func newCleanCmd() *cobra.Command {
	cleanCmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove fetched checkouts from the workspace",
		Long:  "Deletes checkout directories and their records from the workspace.",
		RunE:  runClean,
	}

	cleanCmd.Flags().Bool("all", false, "Remove all checkouts without prompting")

	return cleanCmd
}

func runClean(cmd *cobra.Command, args []string) error {
	ws, err := resolveWorkspace()
	if err != nil {
		return err
	}

	records, err := ws.List()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Nothing to clean")
		return nil
	}

	all, err := cmd.Flags().GetBool("all")
	if err != nil {
		return err
	}

	var selected []string
	if all {
		for _, rec := range records {
			selected = append(selected, rec.Name)
		}
	} else {
		options := make([]huh.Option[string], len(records))
		for i, rec := range records {
			label := rec.Name + "  " + rec.Repo
			if rec.Ref != "" {
				label += "@" + rec.Ref
			}
			options[i] = huh.NewOption(label, rec.Name)
		}

		err := huh.NewForm(
			huh.NewGroup(
				huh.NewMultiSelect[string]().
					Title("Select checkouts to remove").
					Options(options...).
					Value(&selected),
			),
		).Run()
		if err != nil {
			return fmt.Errorf("selection prompt failed: %w", err)
		}

		if len(selected) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Nothing selected")
			return nil
		}
	}

	for _, name := range selected {
		if err := ws.Remove(name); err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d checkout(s)\n", len(selected))
	return nil
}
