package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"filemirror/core/config"
	"filemirror/core/logger"
	"filemirror/core/remote"
	"filemirror/core/server"
	"filemirror/feature/mirror"
	"filemirror/feature/watch"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the mirror daemon",
	Long:  `Watches the configured directory trees and mirrors changes to the remote backend and pointer-file targets.`,
	Run: func(cmd *cobra.Command, args []string) {
		// 1. Load Configuration
		cfg, err := config.LoadConfig(".")
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}

		// 2. Initialize Logger
		logg, err := logger.New(&cfg.Log)
		if err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
		defer logg.Sync()
		zap.ReplaceGlobals(logg)

		mappings := buildMappings(cfg)
		if len(mappings) == 0 {
			logg.Fatal("No mappings configured")
		}

		// 3. Remote backend (only when some mapping mirrors remotely)
		var session *remote.Session
		for _, m := range mappings {
			if m.RemoteEnabled() {
				client, err := remote.NewClient(cfg.Remote)
				if err != nil {
					logg.Fatal("Failed to create remote client", zap.Error(err))
				}
				session = remote.NewSession(client, logg)
				break
			}
		}

		// 4. Mirror driver
		driver := mirror.NewDriver(mappings, session, watch.NewSource(logg), logg)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		done := make(chan error, 1)
		go func() {
			done <- driver.Run(ctx)
		}()

		// 5. Status server (optional)
		var app = server.New(cfg.Server, logg, func() any {
			return driver.Status()
		})
		if cfg.Server.Enabled {
			go func() {
				logg.Info("Starting status server", zap.String("port", cfg.Server.Port))
				if err := app.Listen(":" + cfg.Server.Port); err != nil {
					logg.Fatal("Status server failed to start", zap.Error(err))
				}
			}()
		}

		// 6. Graceful Shutdown
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		logg.Info("Shutting down...")
		cancel()
		if cfg.Server.Enabled {
			_ = app.Shutdown()
		}
		if err := <-done; err != nil && err != context.Canceled {
			logg.Error("Driver stopped with error", zap.Error(err))
		}
		logg.Info("Shutdown complete")
	},
}

// buildMappings converts the config mapping list into engine mappings,
// applying the shared sync settings to each.
func buildMappings(cfg *config.Config) []*mirror.Mapping {
	opts := mirror.Options{
		DebounceDelay:        seconds(cfg.Sync.DebounceDelaySeconds),
		PointerDebounceDelay: seconds(cfg.Sync.PointerDebounceDelaySeconds),
		StableTime:           seconds(cfg.Sync.FileStableTimeSeconds),
		PollInterval:         seconds(cfg.Sync.PollIntervalSeconds),
		MediaTypes:           splitList(cfg.Sync.MediaFileTypes),
		IgnoreExtensions:     splitList(cfg.Sync.IgnoreFileTypes),
		SubtitleExtensions:   splitList(cfg.Sync.SubtitleExtensions),
		OverwriteExisting:    cfg.Sync.OverwriteExisting,
		EnableCleanup:        cfg.Sync.EnableCleanup,
		FullSyncOnStartup:    cfg.Sync.FullSyncOnStartup,
		UseDirectLink:        cfg.Sync.UseDirectLink,
		BaseURL:              cfg.Sync.BaseURL,
	}

	mappings := make([]*mirror.Mapping, 0, len(cfg.Mappings))
	for i, mc := range cfg.Mappings {
		name := filepath.Base(strings.TrimRight(mc.LocalRoot, "/"))
		if name == "" || name == "." || name == "/" {
			name = fmt.Sprintf("mapping-%d", i+1)
		}
		mappings = append(mappings, mirror.NewMapping(mirror.Mapping{
			Name:                  name,
			LocalRoot:             mc.LocalRoot,
			RemoteSourceRoot:      mc.RemoteSourceRoot,
			RemoteDestinationRoot: mc.RemoteDestinationRoot,
			TargetRoot:            mc.TargetRoot,
			MediaPrefix:           mc.MediaPrefix,
			Options:               opts,
		}))
	}
	return mappings
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

// splitList parses a semicolon-separated setting into a clean slice.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func init() {
	RootCmd.AddCommand(startCmd)
}
