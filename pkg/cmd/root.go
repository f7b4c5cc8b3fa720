package cmd

import (
	"os"

	"github.com/johnhoman/repo2docker/pkg/config"
	"github.com/johnhoman/repo2docker/pkg/hg"
	"github.com/johnhoman/repo2docker/pkg/workspace"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	flagHg        string
	flagWorkspace string
	flagVerbose   bool

	// Cfg holds the resolved configuration, available to all subcommands
	// after PersistentPreRunE completes.
	Cfg *config.Config
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "repo2docker",
		Short: "Fetch repository revisions for image building",
		Long:  "repo2docker materializes a revision of a remote repository into a local directory and reports a stable content identifier for the fetch.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if flagVerbose {
				logrus.SetLevel(logrus.DebugLevel)
			}
			cfg, err := config.Load(flagHg, flagWorkspace)
			if err != nil {
				return err
			}
			Cfg = cfg
			return nil
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagHg, "hg", "", "path to the Mercurial executable")
	root.PersistentFlags().StringVar(&flagWorkspace, "workspace", "", "directory checkouts are materialized in")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log every tool invocation")

	root.AddCommand(newFetchCmd())
	root.AddCommand(newDetectCmd())
	root.AddCommand(newDoctorCmd())
	root.AddCommand(newCleanCmd())

	return root
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveTool returns the Mercurial tool, honoring a configured executable
// path over PATH discovery.
func resolveTool() (*hg.Tool, error) {
	if Cfg != nil && Cfg.Hg != "" {
		return hg.New(Cfg.Hg), nil
	}
	return hg.Default()
}

// resolveWorkspace returns the workspace, honoring a configured root.
func resolveWorkspace() (*workspace.Workspace, error) {
	if Cfg != nil && Cfg.Workspace != "" {
		return workspace.New(Cfg.Workspace), nil
	}
	return workspace.Default()
}
