package main

import (
	"bufio"
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/KirkDiggler/rpg-toolkit/events"
	"github.com/spf13/cobra"

	"github.com/KirkDiggler/roll-sync/internal/bridge"
	"github.com/KirkDiggler/roll-sync/internal/config"
	"github.com/KirkDiggler/roll-sync/internal/engine"
	"github.com/KirkDiggler/roll-sync/internal/entities"
	"github.com/KirkDiggler/roll-sync/internal/errors"
	"github.com/KirkDiggler/roll-sync/internal/orchestrators/override"
	"github.com/KirkDiggler/roll-sync/internal/orchestrators/rollsync"
	"github.com/KirkDiggler/roll-sync/internal/pkg/clock"
	"github.com/KirkDiggler/roll-sync/internal/pkg/idgen"
	"github.com/KirkDiggler/roll-sync/internal/redis"
	"github.com/KirkDiggler/roll-sync/internal/repositories/rollcache"
	"github.com/KirkDiggler/roll-sync/internal/transport"
)

var (
	actorFlags []string
	verbose    bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Connect to the game log and sync rolls",
	Long:  `Connect to the remote game log feed and mirror every recognized roll and character update into the local pipeline until interrupted.`,
	RunE:  runSync,
}

func init() {
	syncCmd.Flags().StringArrayVar(&actorFlags, "actor", nil,
		"map a remote character to a local actor, as remoteId=name or remoteId=name:mode (repeatable; mode is normal, manual or remote)")
	syncCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func runSync(cmd *cobra.Command, _ []string) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	roster, err := parseRoster(actorFlags)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Info("received shutdown signal, stopping")
		cancel()
	}()

	cache, err := newRollCache(cfg)
	if err != nil {
		return err
	}

	rollBridge, err := bridge.New(&bridge.Config{
		Cache:       cache,
		IDGenerator: idgen.NewUUID("sub"),
	})
	if err != nil {
		return err
	}

	app := newConsoleApp(roster, bufio.NewScanner(os.Stdin))

	rollService, err := rollsync.NewOrchestrator(&rollsync.Config{
		Resolver:   app,
		Poster:     app,
		Initiative: app,
		Cache:      rollBridge,
		EventBus:   events.NewBus(),
		GuardGrace: cfg.GuardGrace,
	})
	if err != nil {
		return err
	}

	overrideSvc, err := override.NewOrchestrator(&override.Config{
		Modes:    app,
		Prompter: app,
		Bridge:   rollBridge,
	})
	if err != nil {
		return err
	}

	client, err := transport.New(&transport.Config{
		Endpoint:      cfg.GameLogURL,
		CampaignID:    cfg.CampaignID,
		Tokens:        transport.StaticToken(cfg.Token),
		ReconnectBase: cfg.ReconnectBase,
		MaxReconnects: cfg.MaxReconnects,
	})
	if err != nil {
		return err
	}

	eng, err := engine.New(&engine.Config{
		Transport:   client,
		RollService: rollService,
		Bridge:      rollBridge,
		GameState:   app,
		Notifier:    app,
	})
	if err != nil {
		return err
	}

	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer func() {
		if err := client.Disconnect(); err != nil {
			slog.Warn("disconnect failed", "error", err)
		}
	}()

	slog.Info("sync started",
		"campaign_id", cfg.CampaignID,
		"actors", len(roster),
		"redis", cfg.RedisAddress != "",
	)

	// Local rolls are driven from stdin while the engine mirrors the
	// remote table. The loop exits on its own at EOF.
	go app.runRollLoop(ctx, overrideSvc)

	if err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// newRollCache picks the Redis-backed cache when an address is
// configured, the in-memory one otherwise.
func newRollCache(cfg *config.Config) (rollcache.Repository, error) {
	if cfg.RedisAddress == "" {
		return rollcache.NewInMemoryRepository(&rollcache.InMemoryConfig{Clock: clock.New()})
	}

	client, err := redis.NewClient(cfg.RedisAddress, nil)
	if err != nil {
		return nil, err
	}
	return rollcache.NewRedisRepository(&rollcache.Config{
		Client: client,
		Clock:  clock.New(),
	})
}

// parseRoster turns repeated remoteId=name[:mode] flags into a lookup
// map. The mode defaults to normal evaluation.
func parseRoster(flags []string) (map[string]rosterEntry, error) {
	roster := make(map[string]rosterEntry, len(flags))
	for _, flag := range flags {
		remoteID, value, ok := strings.Cut(flag, "=")
		if !ok || remoteID == "" || value == "" {
			return nil, errors.InvalidArgumentf("invalid --actor value %q (expected remoteId=name)", flag)
		}

		entry := rosterEntry{Name: value, Mode: entities.RollModeNormal}
		if name, mode, hasMode := strings.Cut(value, ":"); hasMode {
			switch entities.RollMode(mode) {
			case entities.RollModeNormal, entities.RollModeManual, entities.RollModeRemote:
				entry = rosterEntry{Name: name, Mode: entities.RollMode(mode)}
			default:
				return nil, errors.InvalidArgumentf("invalid roll mode %q in --actor value %q", mode, flag)
			}
			if name == "" {
				return nil, errors.InvalidArgumentf("invalid --actor value %q (expected remoteId=name:mode)", flag)
			}
		}
		roster[remoteID] = entry
	}
	return roster, nil
}
