package cmd

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/avidaloop/localsend-go/internal/logging"
	"github.com/avidaloop/localsend-go/internal/version"
)

var flagVerbose bool

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "localsend-go",
	Short:   "LocalSend-compatible receive-only peer discovery and file transfer",
	Long:    `localsend-go discovers LocalSend-protocol peers on the local network and accepts file transfers from them over a mutually-trusted HTTPS surface. It does not send files.`,
	Version: version.Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(flagVerbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable info-level logging")
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		for s := range sig {
			fmt.Println(s.String())
			os.Exit(0)
		}
	}()
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
