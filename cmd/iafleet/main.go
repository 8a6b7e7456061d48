package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const (
	appName    = "iafleet"
	appVersion = "0.1.0"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           appName,
		Short:         "iafleet: AI assistant fleet admin",
		Long:          "iafleet 管理 AI 助手（IA）、提示词、加密凭据配置与线索",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newIACmd(),
		newPromptCmd(),
		newConfigCmd(),
		newLeadCmd(),
		newSeedCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "显示版本",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s v%s\n", appName, appVersion)
			},
		},
	)
	return rootCmd
}
