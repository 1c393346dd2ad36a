package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/merlink01/psync/cmd"
	"github.com/merlink01/psync/pkg/psync"
)

func rootMain(command *cobra.Command, arguments []string) {
	// Print version information, if requested.
	if rootConfiguration.version {
		fmt.Println(psync.Version)
		return
	}

	// Generate bash completion script, if requested.
	if rootConfiguration.bashCompletionScript != "" {
		if err := command.GenBashCompletionFile(rootConfiguration.bashCompletionScript); err != nil {
			cmd.Fatal(fmt.Errorf("unable to generate bash completion script: %w", err))
		}
		return
	}

	// If no flags were set, then print help information and bail. Arguments
	// can't reach this point since they're mistaken for subcommand names.
	command.Help()
}

var rootCommand = &cobra.Command{
	Use:   "psync",
	Short: "psync synchronizes one file tree into another using per-peer append-only history.",
	Run:   rootMain,
}

var rootConfiguration struct {
	help                 bool
	version              bool
	bashCompletionScript string
}

func init() {
	// Bind flags to configuration. We manually add help to override the
	// default message, but Cobra still implements it automatically.
	flags := rootCommand.Flags()
	flags.BoolVarP(&rootConfiguration.help, "help", "h", false, "Show help information")
	flags.BoolVarP(&rootConfiguration.version, "version", "V", false, "Show version information")
	flags.StringVar(&rootConfiguration.bashCompletionScript, "generate-bash-completion", "", "Generate bash completion script")
	flags.MarkHidden("generate-bash-completion")

	// Disable Cobra's command sorting behavior. By default, it sorts
	// commands alphabetically in the help output.
	cobra.EnableCommandSorting = false

	// Disable Cobra's use of mousetrap so that running from outside a
	// console (e.g. a scheduled task) doesn't trigger its warning prompt.
	cobra.MousetrapHelpText = ""

	// Register commands. We do this here (rather than in individual init
	// functions) so that we can control the order.
	rootCommand.AddCommand(
		syncCommand,
	)
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		os.Exit(1)
	}
}
