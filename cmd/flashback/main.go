package main

import (
	"fmt"
	"os"

	"flashback/internal/di"
	"flashback/internal/structures"

	"github.com/spf13/cobra"
)

func newRoot() *cobra.Command {
	flags := &structures.CliFlags{}
	cmd := &cobra.Command{
		Use:           "flashback",
		Short:         "Reimagine a photo across the decades",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			_, cleanup, err := di.InitApp(flags)
			if err != nil {
				return err
			}
			cleanup()
			return nil
		},
	}
	cmd.Flags().StringVarP(&flags.ConfigPath, "config", "c", "config.yaml", "path to the YAML config file")
	cmd.Flags().BoolVarP(&flags.DebugMode, "debug", "d", false, "also log to the console")
	return cmd
}

func main() {
	if err := newRoot().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
