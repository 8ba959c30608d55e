package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Utre17/tasksmart/internal/config"
	"github.com/Utre17/tasksmart/internal/ingest"
	"github.com/Utre17/tasksmart/internal/session"
	"github.com/Utre17/tasksmart/internal/storage/kv"
	"github.com/Utre17/tasksmart/internal/store/guest"
	"github.com/Utre17/tasksmart/internal/store/remote"
	"github.com/Utre17/tasksmart/internal/taskman"
	"github.com/Utre17/tasksmart/internal/util"
)

var (
	configPath string
	verbose    bool
)

func main() {
	root := &cobra.Command{
		Use:   "tasksmart",
		Short: "Task manager with on-device guest mode and account migration",
		Long: `tasksmart keeps tasks on-device while you use it as a guest and moves
them into a durable account when you register. The serve subcommand runs
the authenticated backend; the rest operate as the device-side client.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config",
		util.EnvOrDefault("TASKSMART_CONFIG", ""), "path to YAML config file")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newServeCmd(),
		newAddCmd(),
		newListCmd(),
		newDoneCmd(),
		newRemoveCmd(),
		newClearCmd(),
		newRegisterCmd(),
		newSummarizeCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// device bundles everything the client-side commands need: the on-device
// store, session state, both backends and the routing facade.
type device struct {
	cfg      config.Config
	logger   *slog.Logger
	kv       *kv.Store
	sessions *session.Provider
	guest    *guest.Store
	remote   *remote.Client
	manager  *taskman.Manager
	pipeline *ingest.Pipeline
}

// openDevice wires the client-side dependency graph. Persisted session
// state is restored first; a device that never registered falls back to
// guest mode, reusing the persisted guest identity when one exists.
func openDevice(cmd *cobra.Command) (*device, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger := newLogger()

	kvStore, err := kv.Open(cfg.DeviceDBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("open device store: %w", err)
	}

	sessions := session.NewProvider(kvStore, logger)
	if err := sessions.Restore(cmd.Context()); err != nil {
		_ = kvStore.Close()
		return nil, err
	}
	if !sessions.State().Authenticated {
		if _, err := sessions.BeginGuest(cmd.Context()); err != nil {
			_ = kvStore.Close()
			return nil, err
		}
	}

	guestStore := guest.New(kvStore, sessions.State().GuestID, logger)
	remoteClient := remote.New(cfg.APIBaseURL, sessions, logger)
	manager := taskman.New(sessions, guestStore, remoteClient, logger)

	// Guest mode never calls the AI categorization tier; the heuristic
	// tier handles ingestion locally. Authenticated sessions use the AI
	// service when one is configured.
	var aiClient *ingest.Client
	if cfg.AI.BaseURL != "" {
		aiClient = ingest.NewClient(cfg.AI.BaseURL, cfg.AI.APIKey, ingest.WithTimeout(cfg.AI.Timeout()))
	}
	var categorizer ingest.Categorizer
	var summarizer ingest.Summarizer
	if aiClient != nil {
		summarizer = aiClient
		if sessions.State().Authenticated {
			categorizer = aiClient
		}
	}
	pipeline := ingest.New(categorizer, summarizer, logger)

	return &device{
		cfg:      cfg,
		logger:   logger,
		kv:       kvStore,
		sessions: sessions,
		guest:    guestStore,
		remote:   remoteClient,
		manager:  manager,
		pipeline: pipeline,
	}, nil
}

func (d *device) close() {
	_ = d.kv.Close()
}
