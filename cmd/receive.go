package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/avidaloop/localsend-go/internal/bus"
	"github.com/avidaloop/localsend-go/internal/config"
	"github.com/avidaloop/localsend-go/internal/discovery"
	"github.com/avidaloop/localsend-go/internal/httpapi"
	"github.com/avidaloop/localsend-go/internal/session"
	"github.com/avidaloop/localsend-go/internal/ui"
)

// peerTableInterval is how often the live discovery table redraws while
// the receive command is running.
const peerTableInterval = 3 * time.Second

// CLI flags for the receive command.
var (
	flagOutputDir   string
	flagAlias       string
	flagDeviceType  string
	flagDeviceModel string
	flagPort        int
	flagAutoAccept  bool
)

// receiveCmd represents the receive command.
var receiveCmd = &cobra.Command{
	Use:     "receive",
	Aliases: []string{"r"},
	Short:   "Discover peers and accept incoming file transfers",
	Long: `The receive command announces this device on the local network, listens
for LocalSend-protocol senders, and accepts file transfers over a
mutually-trusted HTTPS surface.

Examples:
  # Receive with defaults
  localsend-go receive

  # Use a custom alias and output directory
  localsend-go receive --alias my-laptop --output-dir ~/Downloads

  # Accept every incoming offer without prompting
  localsend-go receive --auto-accept`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return receiveFiles()
	},
}

func receiveFiles() error {
	cfg, err := config.Load(config.Options{
		Alias:       flagAlias,
		DeviceType:  flagDeviceType,
		DeviceModel: flagDeviceModel,
		Port:        flagPort,
		OutputDir:   flagOutputDir,
		AutoAccept:  flagAutoAccept,
	})
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := slog.Default()
	ctx := context.Background()

	b := bus.New()
	ctrl := session.New(b, cfg.OutputDir, log)

	stopSpinner := ui.RunConnectionSpinner("Joining multicast discovery group")
	disc, err := discovery.New(discovery.Config{
		Alias:         cfg.Alias,
		DeviceType:    cfg.DeviceType,
		DeviceModel:   cfg.DeviceModel,
		Port:          cfg.Port,
		MulticastAddr: cfg.MulticastAddr,
	}, log)
	stopSpinner()
	if err != nil {
		return fmt.Errorf("failed to start discovery: %w", err)
	}
	defer disc.Close()

	go func() {
		if err := disc.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("discovery stopped", "err", err)
		}
	}()

	go func() {
		ticker := time.NewTicker(peerTableInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Println(ui.RenderPeerTable(disc.Peers()))
			}
		}
	}()

	srv := httpapi.New(fmt.Sprintf(":%d", cfg.Port), ctrl, log)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.ListenAndServeTLS(cfg.Alias)
	}()

	coordinator := ui.New(b, cfg.AutoAccept, log)

	ui.PrintInfof("Announcing as %q on %s, listening for transfers", cfg.Alias, fmt.Sprintf(":%d", cfg.Port))

	done := make(chan struct{})
	go func() {
		coordinator.Run(ctx)
		close(done)
	}()

	select {
	case err := <-serverErr:
		ui.PrintErrorf("https surface failed: %v", err)
		return fmt.Errorf("https surface failed: %w", err)
	case <-done:
		return nil
	}
}

func init() {
	rootCmd.AddCommand(receiveCmd)

	receiveCmd.Flags().StringVarP(&flagOutputDir, "output-dir", "o", "", "Directory to save received files (default ./test_files/)")
	receiveCmd.Flags().StringVarP(&flagAlias, "alias", "a", "", "Alias to announce on the network")
	receiveCmd.Flags().StringVarP(&flagDeviceType, "device-type", "t", "", "Device type to announce (default desktop)")
	receiveCmd.Flags().StringVarP(&flagDeviceModel, "device-model", "m", "", "Device model to announce")
	receiveCmd.Flags().IntVarP(&flagPort, "port", "p", 0, "UDP/TCP port to use (default 53317)")
	receiveCmd.Flags().BoolVar(&flagAutoAccept, "auto-accept", false, "Accept every incoming offer without prompting")
}
