package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/l1jgo/simcore/internal/ability"
	"github.com/l1jgo/simcore/internal/config"
	"github.com/l1jgo/simcore/internal/core/clock"
	"github.com/l1jgo/simcore/internal/core/ecs"
	"github.com/l1jgo/simcore/internal/core/event"
	coresys "github.com/l1jgo/simcore/internal/core/system"
	"github.com/l1jgo/simcore/internal/data"
	"github.com/l1jgo/simcore/internal/effect"
	"github.com/l1jgo/simcore/internal/handler"
	"github.com/l1jgo/simcore/internal/latency"
	gonet "github.com/l1jgo/simcore/internal/net"
	"github.com/l1jgo/simcore/internal/net/packet"
	"github.com/l1jgo/simcore/internal/persist"
	"github.com/l1jgo/simcore/internal/reconcile"
	"github.com/l1jgo/simcore/internal/sim"
	"github.com/l1jgo/simcore/internal/spatial"
	"github.com/l1jgo/simcore/internal/system"
	"github.com/l1jgo/simcore/internal/world"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(serverName string, serverID int) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m              simcore  v0.1.0              \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m    authoritative ability simulation       \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mserver:\033[0m %s \033[90m(id: %d)\033[0m\n\n", serverName, serverID)
}

func printSection(title string) {
	lineLen := 46 - len(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := 42 - len(label) - len(numStr)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main server logic ─────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/simcore.toml"
	if p := os.Getenv("SIMCORE_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if errors.Is(err, fs.ErrNotExist) {
		cfg, err = config.Default(), nil
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Server.Name, cfg.Server.ID)

	// 3. Content tables and scripts
	printSection("content")
	content, err := data.Load(cfg.Content, log)
	if err != nil {
		return fmt.Errorf("content: %w", err)
	}
	defer content.Close()
	printStat("abilities", content.Abilities.Count())
	printStat("effects", content.Effects.Count())
	printStat("weapons", content.Weapons.Count())
	printStat("scripts", len(content.Scripts.Abilities()))
	fmt.Println()

	// 4. Simulation core
	policy, err := sim.ParsePolicy(cfg.Simulation.BatchPolicy)
	if err != nil {
		return fmt.Errorf("simulation: %w", err)
	}
	clk := clock.NewMonotonic()
	bus := event.NewBus()
	ecsWorld := ecs.NewWorld()
	registry := ecsWorld.Registry()
	index := spatial.NewSphereIndex()
	lat := latency.NewCompensator(log.Named("latency"))

	effects := effect.NewEngine(content.Effects, clk, bus, log.Named("effect"))
	abilities := ability.NewEngine(content.Abilities, clk, bus, &ability.Services{
		Registry: registry,
		Effects:  effects,
		Spatial:  index,
		Latency:  lat,
	}, log.Named("ability"))
	manager := sim.NewManager(registry, bus, cfg.Simulation.Workers, log.Named("sim"))
	protocol := reconcile.New(abilities, registry, bus, reconcile.Options{
		RateLimit:  cfg.Abilities.RateLimitPerSecond,
		Timeout:    cfg.Abilities.PredictionTimeout,
		MaxPerTick: cfg.Abilities.MaxPerTick,
	}, log.Named("reconcile"))

	worldState := world.NewState(ecsWorld, manager, content, effects, abilities, log)
	printSection("world")
	npcCount, err := worldState.SpawnStartup()
	if err != nil {
		return fmt.Errorf("spawn: %w", err)
	}
	printStat("npcs spawned", npcCount)
	index.Rebuild(registry.ActiveList())
	fmt.Println()

	// 5. Resolution journal (optional)
	var (
		journal *system.JournalSystem
		db      *persist.DB
	)
	if cfg.Journal.Enabled {
		printSection("journal")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		db, err = persist.NewDB(ctx, cfg.Journal, log)
		if err == nil {
			err = db.Migrate(ctx)
		}
		cancel()
		if err != nil {
			if db != nil {
				db.Close()
			}
			return fmt.Errorf("journal: %w", err)
		}
		defer db.Close()
		printOK("PostgreSQL connected, migrations applied")
		fmt.Println()
		journal = system.NewJournalSystem(bus, persist.NewJournalRepo(db), cfg.Journal.FlushTicks, journalQueueDepth(cfg.Journal), log.Named("journal"))
	}

	// 6. Message handlers
	pktReg := packet.NewRegistry(log)
	handler.RegisterAll(pktReg, &handler.Deps{
		Config:   cfg,
		Log:      log,
		Clock:    clk,
		World:    worldState,
		Protocol: protocol,
	})

	// 7. Network server
	netServer, err := gonet.NewServer(cfg.Network.BindAddress, cfg.Network.Path, gonet.SessionOptions{
		InQueueSize:  cfg.Network.InQueueSize,
		OutQueueSize: cfg.Network.OutQueueSize,
		MaxPerSecond: cfg.Network.MaxMessagesPerSecond,
		PingInterval: cfg.Network.PingInterval,
		WriteTimeout: cfg.Network.WriteTimeout,
		ReadTimeout:  cfg.Network.ReadTimeout,
	}, log.Named("net"))
	if err != nil {
		return fmt.Errorf("net server: %w", err)
	}

	// 8. Systems, in phase order
	store := gonet.NewSessionStore()
	runner := coresys.NewRunner()
	runner.Register(system.NewInputSystem(netServer, pktReg, store, protocol, worldState, cfg.Network.MaxMessagesPerTick, log))
	runner.Register(system.NewEventSystem(bus))
	runner.Register(system.NewCommitSystem(lat, index, registry, protocol))
	runner.Register(system.NewOutputSystem(store))
	if journal != nil {
		runner.Register(journal)
	}
	runner.Register(system.NewCleanupSystem(ecsWorld, log))

	scheduler := sim.NewScheduler(sim.Options{
		TickInterval:    cfg.Simulation.TickInterval(),
		BatchSize:       cfg.Simulation.BatchSize,
		Policy:          policy,
		BudgetFraction:  cfg.Simulation.BudgetFraction,
		TelemetryWindow: cfg.Simulation.TelemetryWindow,
	}, clk, runner, manager, registry, bus, log.Named("sim"))

	// 9. Run until signalled
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	printSection("ready")
	printReady(fmt.Sprintf("listening on ws://%s%s", netServer.Addr(), cfg.Network.Path))
	printReady(fmt.Sprintf("tick %s, policy %s", cfg.Simulation.TickInterval(), policy))
	fmt.Println()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(netServer.Serve)
	if journal != nil {
		g.Go(func() error {
			journal.Run(gctx)
			return nil
		})
	}
	g.Go(func() error {
		err := scheduler.Run(gctx)
		// The tick goroutine is done; nothing else touches the journal buffer.
		if journal != nil {
			journal.Stop()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if serr := netServer.Shutdown(shutdownCtx); serr != nil {
			log.Warn("net shutdown", zap.Error(serr))
		}
		return err
	})

	err = g.Wait()
	tel := scheduler.Telemetry()
	log.Info("server stopped",
		zap.Uint64("tick", tel.Tick),
		zap.Uint64("overruns", tel.Overruns),
		zap.Int("players", worldState.PlayerCount()),
	)
	return err
}

// journalQueueDepth converts the entry buffer into a number of in-flight
// batches.
func journalQueueDepth(cfg config.JournalConfig) int {
	per := cfg.FlushTicks
	if per < 1 {
		per = 1
	}
	depth := cfg.BufferSize / (per * 4)
	if depth < 4 {
		depth = 4
	}
	return depth
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
