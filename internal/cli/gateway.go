package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/GovClaw/GovClaw/internal/agent"
	"github.com/GovClaw/GovClaw/internal/bus"
	"github.com/GovClaw/GovClaw/internal/channels"
	"github.com/GovClaw/GovClaw/internal/config"
	"github.com/GovClaw/GovClaw/internal/mirror"
	"github.com/GovClaw/GovClaw/internal/policy"
	"github.com/GovClaw/GovClaw/internal/provider"
	"github.com/GovClaw/GovClaw/internal/scheduler"
	"github.com/GovClaw/GovClaw/internal/store"
	"github.com/GovClaw/GovClaw/internal/tools"
)

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Start the gateway (channels, scheduler, agent loop)",
	Run:   runGateway,
}

func runGateway(cmd *cobra.Command, args []string) {
	printHeader("GovClaw Gateway")

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Config error: %v\n", err)
		os.Exit(1)
	}

	rt, err := buildRuntime(cfg)
	if err != nil {
		fmt.Printf("Startup error: %v\n", err)
		os.Exit(1)
	}
	defer rt.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Printf("\nShutting down (pending: inbound=%d outbound=%d)...\n",
			rt.Bus.InboundSize(), rt.Bus.OutboundSize())
		cancel()
	}()

	// Channels
	if cfg.Channels.Telegram.Enabled {
		tg, err := channels.NewTelegramChannel(cfg.Channels.Telegram, rt.Bus, rt.Store)
		if err != nil {
			fmt.Printf("Telegram error: %v\n", err)
			os.Exit(1)
		}
		if err := tg.Start(ctx); err != nil {
			fmt.Printf("Failed to start Telegram: %v\n", err)
		} else {
			defer tg.Stop()
			fmt.Println("Telegram channel started")
		}
	}
	if cfg.Channels.Slack.Enabled {
		slack := channels.NewSlackChannel(cfg.Channels.Slack, rt.Bus)
		if err := slack.Start(ctx); err != nil {
			fmt.Printf("Failed to start Slack: %v\n", err)
		} else {
			fmt.Println("Slack channel started")
		}
	}

	// Scheduler
	if cfg.Scheduler.Enabled {
		sched := scheduler.New(scheduler.Config{
			TickInterval: cfg.Scheduler.TickInterval,
			LockPath:     cfg.Scheduler.LockPath,
		}, rt.Store, rt.Loop, rt.Bus)
		go sched.Run(ctx)
		fmt.Println("Scheduler started")
	}

	go rt.Bus.DispatchOutbound(ctx)

	fmt.Printf("Gateway running (model: %s)\n", cfg.Model.Name)
	rt.Loop.Run(ctx)
}

// runtime bundles everything a running govclaw process needs. The CLI
// commands that only poke the store use openStore directly instead.
type runtime struct {
	Store  *store.Store
	Bus    *bus.MessageBus
	Loop   *agent.Loop
	mirror *mirror.Publisher
}

func (r *runtime) Close() {
	if r.mirror != nil {
		r.mirror.Close()
	}
	if r.Store != nil {
		r.Store.Close()
	}
}

// buildRuntime wires config -> store -> policy -> registry -> loop.
// Capability registration and the delegation spawner happen here so every
// entry point (gateway, chat) gets identical governance.
func buildRuntime(cfg *config.Config) (*runtime, error) {
	if err := os.MkdirAll(cfg.Paths.Workspace, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	st, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	rules := make([]policy.Rule, 0, len(cfg.Policy.ExtraRules))
	for _, r := range cfg.Policy.ExtraRules {
		rules = append(rules, policy.Rule{Pattern: r.Pattern, Reason: r.Reason})
	}
	engine, err := policy.NewDefaultEngine(cfg.Paths.Workspace, rules...)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("policy engine: %w", err)
	}

	msgBus := bus.NewMessageBus()
	registry := buildRegistry(cfg, st, msgBus)

	// Delegation is registered before capability seeding so it gets a
	// status row like every other capability.
	spawnTool := &tools.SpawnSubagentTool{}
	registry.Register(spawnTool)

	if err := seedCapabilities(st, registry, cfg.Agent.AutoApproveBuiltins); err != nil {
		st.Close()
		return nil, err
	}

	var auditSink agent.AuditSink
	var mirrorPub *mirror.Publisher
	if cfg.Mirror.Brokers != "" && cfg.Mirror.Topic != "" {
		mirrorPub = mirror.New(cfg.Mirror.Brokers, cfg.Mirror.Topic)
		auditSink = mirrorPub.Publish
		fmt.Printf("Audit mirror enabled (topic: %s)\n", cfg.Mirror.Topic)
	}

	prov := provider.NewOpenAIProvider(cfg.Model.APIKey, cfg.Model.APIBase, cfg.Model.Name)

	loop := agent.NewLoop(agent.LoopOptions{
		Bus:           msgBus,
		Provider:      prov,
		Store:         st,
		Policy:        engine,
		Registry:      registry,
		Workspace:     cfg.Paths.Workspace,
		Model:         cfg.Model.Name,
		MaxTokens:     cfg.Model.MaxTokens,
		Temperature:   cfg.Model.Temperature,
		MaxIterations: cfg.Agent.MaxIterations,
		MemoryWindow:  cfg.Agent.MemoryWindow,
		ToolTimeout:   cfg.Agent.ToolTimeout,
		AuditSink:     auditSink,
	})

	spawner := agent.NewSpawner(loop, cfg.Agent.SubagentMaxIterations)
	spawnTool.Spawn = spawner.Spawn

	return &runtime{Store: st, Bus: msgBus, Loop: loop, mirror: mirrorPub}, nil
}

func openStore(cfg *config.Config) (*store.Store, error) {
	st, err := store.Open(cfg.Paths.DBPath, cfg.Scheduler.IntervalFloor)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

// buildRegistry registers the built-in capabilities. Web search is only
// registered when an API key is configured.
func buildRegistry(cfg *config.Config, st *store.Store, msgBus *bus.MessageBus) *tools.Registry {
	registry := tools.NewRegistry()
	workspace := cfg.Paths.Workspace

	registry.Register(tools.NewExecTool(workspace, cfg.Agent.ToolTimeout))
	registry.Register(&tools.ReadFileTool{Workspace: workspace})
	registry.Register(&tools.WriteFileTool{Workspace: workspace})
	registry.Register(&tools.ListDirTool{Workspace: workspace})
	registry.Register(tools.NewWebFetchTool())
	if cfg.Search.BraveAPIKey != "" {
		registry.Register(tools.NewWebSearchTool(cfg.Search.BraveAPIKey))
	}
	registry.Register(&tools.ManageMemoryTool{Store: st})
	registry.Register(&tools.ManageCronTool{Store: st})
	registry.Register(&tools.SendFileTool{Workspace: workspace, Bus: msgBus})

	return registry
}

// seedCapabilities gives every registered capability a status row. Existing
// rows keep their administratively assigned status across restarts.
func seedCapabilities(st *store.Store, registry *tools.Registry, autoApprove bool) error {
	def := store.StatusPending
	if autoApprove {
		def = store.StatusApproved
	}
	for _, name := range registry.Names() {
		if err := st.EnsureCapability(name, def); err != nil {
			return err
		}
	}
	return nil
}
