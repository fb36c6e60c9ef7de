package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	browse "github.com/sthembisoo/raygun4go/cmd/errors"
	"github.com/sthembisoo/raygun4go/cmd/flush"
	"github.com/sthembisoo/raygun4go/cmd/locate"
	"github.com/sthembisoo/raygun4go/cmd/report"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "raygun4go",
	Short: "Crash reports with native symbol locators for Raygun",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			logrus.SetLevel(logrus.DebugLevel)
		}
	},
	SilenceUsage: true,
}

func main() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log diagnostics about degraded reports")

	rootCmd.AddCommand(locate.NewCmdLocate())
	rootCmd.AddCommand(report.NewCmdReport())
	rootCmd.AddCommand(browse.NewCmdErrors())
	rootCmd.AddCommand(flush.NewCmdFlush())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
