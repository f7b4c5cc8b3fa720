package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Report tool availability and capabilities",
		Long: `Prints where the Mercurial executable was found, its version, and which
optional capabilities are present. Informational only: whether a missing
tool or capability matters is the caller's policy, so doctor never fails.`,
		RunE: runDoctor,
	}
}

func runDoctor(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	tool, err := resolveTool()
	if err != nil {
		fmt.Fprintf(out, "executable: not found (%v)\n", err)
		return nil
	}
	fmt.Fprintf(out, "executable: %s\n", tool.Path())

	version, err := tool.Version(cmd.Context())
	if err != nil {
		fmt.Fprintf(out, "version:    unavailable (%v)\n", err)
		return nil
	}
	fmt.Fprintf(out, "version:    %s\n", version)
	fmt.Fprintf(out, "topics:     %v\n", tool.SupportsTopics())

	if ws, err := resolveWorkspace(); err == nil {
		fmt.Fprintf(out, "workspace:  %s\n", ws.Root())
	}
	return nil
}
