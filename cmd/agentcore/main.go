// Command agentcore runs the adaptive agent runtime as an interactive,
// line-oriented REPL: every line read from stdin is one query driven
// through the Reasoning Scheduler (C7), which in turn drives the Agent
// Loop (C6) against the active Session's Conversation. Grounded on the
// teacher's cmd/buckley/main.go startup idiom (flag parsing into an
// options struct, config load before anything else, signal-driven
// graceful shutdown) distilled down to this runtime's much smaller
// surface.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/driftloop/agentcore/pkg/agentloop"
	"github.com/driftloop/agentcore/pkg/approval"
	"github.com/driftloop/agentcore/pkg/callback"
	"github.com/driftloop/agentcore/pkg/config"
	"github.com/driftloop/agentcore/pkg/cost"
	"github.com/driftloop/agentcore/pkg/logging"
	"github.com/driftloop/agentcore/pkg/model"
	"github.com/driftloop/agentcore/pkg/scheduler"
	"github.com/driftloop/agentcore/pkg/session"
	"github.com/driftloop/agentcore/pkg/statesvc"
	"github.com/driftloop/agentcore/pkg/tool"
	"github.com/driftloop/agentcore/pkg/tracker"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (defaults layered with env AGENTCORE_*)")
	approvalModeFlag := flag.String("approval-mode", "safe", "tool approval mode: ask, safe, auto, yolo")
	modelOverride := flag.String("model", "", "model ID override (defaults to anthropic.model from config)")
	verbose := flag.Bool("verbose", false, "enable debug-level logging")
	flag.Parse()

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	log := logging.New(logging.Options{Level: level, Pretty: true})

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "agentcore: %v\n", err)
		os.Exit(1)
	}

	mode, err := approval.ParseMode(*approvalModeFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "agentcore: %v\n", err)
		os.Exit(1)
	}

	modelID := cfg.Anthropic.Model
	if *modelOverride != "" {
		modelID = *modelOverride
	}
	if modelID == "" {
		fmt.Fprintln(os.Stderr, "agentcore: no model configured (set anthropic.model or pass -model)")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	app, err := build(ctx, cfg, modelID, mode, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "agentcore: %v\n", err)
		os.Exit(1)
	}

	go func() {
		<-sigCh
		log.Info().Msg("shutting down, saving sessions")
		app.shutdown(context.Background())
		cancel()
		os.Exit(0)
	}()

	app.repl(ctx)
}

// application bundles every wired component the REPL loop drives.
type application struct {
	cfg       *config.Config
	log       zerolog.Logger
	modelID   string
	manager   *session.Manager
	stateSvc  *statesvc.Service
	scheduler *scheduler.Scheduler
	sess      *session.Session
}

func build(ctx context.Context, cfg *config.Config, modelID string, mode approval.Mode, log zerolog.Logger) (*application, error) {
	var client model.Client = model.NewAnthropicClient(cfg.Anthropic.APIKey, cfg.Anthropic.BaseURL, log)
	client = model.NewRateLimitedClient(client, rate.Limit(4), 8)

	costCalc := cost.NewTableCalculator(cost.DefaultAnthropicRates())

	provider, err := buildStateProvider(cfg.StateProvider)
	if err != nil {
		return nil, fmt.Errorf("build state provider: %w", err)
	}

	eventBus := buildBus(cfg.Bus, logging.WithCategory(log, logging.CategoryBus, ""))

	summarizer := session.NewLLMSummarizer(client, modelID, costCalc, logging.WithCategory(log, logging.CategorySession, ""))
	manager := session.New(provider, "You are a helpful, adaptive coding and reasoning assistant.", modelID, cfg.Conversation.EnableCaching, summarizer, logging.WithCategory(log, logging.CategorySession, ""))

	if err := manager.MigrateLegacySessionFile(ctx); err != nil {
		log.Warn().Err(err).Msg("legacy session migration skipped")
	}

	sess, err := manager.GetOrCreateDefaultSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("get or create default session: %w", err)
	}

	extractor := statesvc.NewLLMExtractor(client, modelID, costCalc, logging.WithCategory(log, logging.CategorySession, sess.ID))
	extractor.SetAccumulator(sess.Costs)
	stateSvc := statesvc.New(eventBus, provider, sess.ID, extractor, logging.WithCategory(log, logging.CategorySession, sess.ID))
	if _, err := stateSvc.LoadState(ctx); err != nil {
		log.Warn().Err(err).Msg("no prior session state restored")
	}

	registry := tool.NewRegistry(cfg.Conversation.EnableCaching, logging.WithCategory(log, logging.CategoryTool, ""))
	if err := registerBuiltinTools(registry, stateSvc); err != nil {
		return nil, fmt.Errorf("register builtin tools: %w", err)
	}

	stdin := bufio.NewReader(os.Stdin)
	stdout := bufio.NewWriter(os.Stdout)
	requester := newStdinRequester(stdin, stdout)

	approvalCfg := agentloop.ApprovalConfig{
		Mode:      mode,
		Context:   approval.Context{AllowExternalAuto: false},
		Requester: requester,
		Classify:  classifyTool,
	}

	newLoop := func(tr *tracker.Tracker) *agentloop.Loop {
		deps := agentloop.Dependencies{
			Client:   client,
			Registry: registry,
			Tracker:  tr,
			Approval: approvalCfg,
			Log:      logging.WithCategory(log, logging.CategoryModel, sess.ID),
		}
		return agentloop.New(deps, agentloop.RequestDefaults{MaxTokens: 4096, Temperature: 0.7})
	}

	analyzer, planner, evaluator, synthesizer := scheduler.NewReasoningPorts(client, modelID, costCalc, sess.Costs, logging.WithCategory(log, logging.CategoryScheduler, sess.ID))

	reasoningCfg := scheduler.ReasoningConfig{
		MaxIterations:      cfg.Reasoning.MaxIterations,
		MinQualityDirect:   cfg.Reasoning.MinQualityDirect,
		MinQualityLight:    cfg.Reasoning.MinQualityLight,
		MinQualityDeep:     cfg.Reasoning.MinQualityDeep,
		MinConfidence:      cfg.Reasoning.MinConfidence,
		ForceStrategy:      mapForceStrategy(cfg.Reasoning.ForceStrategy, log),
		StreamChunkDelayMS: 20,
	}

	sched := scheduler.New(scheduler.Dependencies{
		NewLoop:     newLoop,
		Analyzer:    analyzer,
		Planner:     planner,
		Evaluator:   evaluator,
		Synthesizer: synthesizer,
		Cost:        sess.Costs,
		CostCalc:    costCalc,
		Log:         logging.WithCategory(log, logging.CategoryScheduler, sess.ID),
	}, reasoningCfg)

	return &application{
		cfg:       cfg,
		log:       log,
		modelID:   modelID,
		manager:   manager,
		stateSvc:  stateSvc,
		scheduler: sched,
		sess:      sess,
	}, nil
}

// classifyTool maps the two built-ins (current_time,
// recall_session_state) to OpReadOnly and every other tool to
// OpMutating: the built-ins only read in-memory session state, never an
// external system, so OpExternalEffect's stricter gate would be overly
// conservative. A deployment wiring in real MCP providers should
// replace this with a lookup keyed on the tool's declared metadata.
func classifyTool(name string) approval.Operation {
	switch name {
	case "current_time", "recall_session_state":
		return approval.OpReadOnly
	default:
		return approval.OpMutating
	}
}

func (a *application) shutdown(ctx context.Context) {
	a.manager.SaveAllSessions(ctx)
}

func (a *application) repl(ctx context.Context) {
	fmt.Fprintf(os.Stdout, "agentcore ready (session %s, model %s). Type your query and press enter; Ctrl-C to exit.\n", a.sess.ID, a.modelID)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Fprint(os.Stdout, "\n> ")
		if !scanner.Scan() {
			break
		}
		query := scanner.Text()
		if query == "" {
			continue
		}

		select {
		case <-ctx.Done():
			return
		default:
		}

		a.runQuery(ctx, query)
	}

	a.shutdown(ctx)
}

func (a *application) runQuery(ctx context.Context, query string) {
	queryID := ulid.Make().String()
	hooks := a.buildHooks(queryID)

	start := time.Now()
	response, err := a.scheduler.Run(ctx, a.sess.Conversation, a.modelID, query, hooks)
	if err != nil {
		a.log.Error().Err(err).Str("query_id", queryID).Msg("reasoning run failed")
		fmt.Fprintf(os.Stdout, "\nerror: %v\n", err)
		return
	}
	a.log.Info().Str("query_id", queryID).Dur("elapsed", time.Since(start)).Msg("reasoning run complete")

	fmt.Fprintf(os.Stdout, "\n%s\n", response)

	a.sess.Touch()
	a.stateSvc.OnExchangeComplete(ctx, query, response, map[string]any{"kind": "conversation"})

	if _, err := a.manager.UpdateActiveSessionSummary(ctx, false); err != nil {
		a.log.Warn().Err(err).Msg("summary update skipped")
	}
	a.manager.SaveActiveSession(ctx)
}

func (a *application) buildHooks(queryID string) *callback.SchedulerHooks {
	loopHooks := &callback.LoopHooks{
		OnToolCall: func(name string, input map[string]any) {
			a.log.Debug().Str("tool", name).Msg("tool call")
		},
		OnToolResult: func(name, result string, success bool) {
			a.stateSvc.OnToolExecuted(context.Background(), name, success, 0)
		},
	}

	return &callback.SchedulerHooks{
		Loop: loopHooks,
		OnAutoEscalation: func(from, to tracker.Strategy, reason string, confidence float64) {
			a.log.Info().Str("from", string(from)).Str("to", string(to)).Str("reason", reason).Msg("escalating strategy")
		},
		OnTrackerComplete: func(t *tracker.Tracker, query string) {
			a.sess.AttachTracker(queryID, t)
			a.stateSvc.OnReasoningComplete(context.Background(), t.Insights.ConfirmedFacts, queryID)
		},
	}
}
