package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"aura/internal/audio"
	"aura/internal/browse"
	"aura/internal/config"
	"aura/internal/deferred"
	"aura/internal/desktop"
	"aura/internal/handlers"
	"aura/internal/intent"
	"aura/internal/journal"
	"aura/internal/locking"
	"aura/internal/logging"
	"aura/internal/metrics"
	"aura/internal/orchestrator"
	"aura/internal/postprocess"
	"aura/internal/reasoning"
	"aura/internal/types"
	"aura/internal/vision"
)

// app is the assembled assistant: the pipeline plus the collaborators the
// REPL needs direct access to.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	orch     *orchestrator.Orchestrator
	mouse    *desktop.ManualMouseCapture
	machine  *deferred.Machine
	deferred *handlers.DeferredHandler
	feedback *audio.Feedback
	journal  *journal.Journal
	recorder *metrics.Recorder

	group  *errgroup.Group
	cancel context.CancelFunc
}

// buildApp wires every component from the configuration and starts the
// background workers (audio, metrics endpoint).
func buildApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	var recorder *metrics.Recorder
	if cfg.Metrics.Enabled {
		recorder = metrics.NewRecorder(metrics.DefaultConfig())
	}

	reason, err := buildReasoningClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var vis vision.Client
	if cfg.Vision.Enabled && cfg.Vision.APIKey != "" {
		analyzer, err := vision.NewGeminiAnalyzer(ctx, vision.Config{
			APIKey:  cfg.Vision.APIKey,
			Model:   cfg.Vision.Model,
			Timeout: cfg.GetVisionTimeout(),
		}, desktop.CommandCapturer{}, logger.Named(logging.CategoryVision))
		if err != nil {
			return nil, fmt.Errorf("vision client: %w", err)
		}
		vis = analyzer
	} else {
		logger.Info("vision disabled, slow paths will report module_unavailable")
	}

	feedback := audio.NewFeedback(
		audio.DefaultSink(cfg.Audio.Voice),
		audio.Config{Enabled: cfg.Audio.Enabled, QueueSize: cfg.Audio.QueueSize},
		logger.Named(logging.CategoryAudio), recorder)

	var jrn *journal.Journal
	if cfg.Journal.Enabled {
		if dir := filepath.Dir(cfg.Journal.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("journal directory: %w", err)
			}
		}
		jrn, err = journal.Open(cfg.Journal.Path, logger.Named(logging.CategoryJournal))
		if err != nil {
			return nil, fmt.Errorf("journal: %w", err)
		}
	}

	lock := locking.NewExecutionLock(logger.Named("lock"))
	machine := deferred.NewMachine(logger.Named(logging.CategoryDeferred), recorder)
	mouse := desktop.NewManualMouseCapture()
	auto := desktop.NewClipboardAutomation(desktop.ShellAutomation{})
	detector := desktop.NewDetector(logger.Named(logging.CategoryDesktop), desktop.DefaultMethods("")...)
	access := &desktop.BasicAccessibility{Detector: detector}
	clock := desktop.SystemClock{}

	browser := browse.NewRodExtractor(browse.Config{
		ControlURL:  cfg.Browse.ControlURL,
		PageTimeout: cfg.GetPageTimeout(),
	}, logger.Named(logging.CategoryBrowse))
	pdf := browse.NewPdfExtractor(logger.Named(logging.CategoryBrowse))

	hlog := logger.Named(logging.CategoryHandlers)

	conv := handlers.NewConversationHandler(reason, handlers.ConversationConfig{
		MaxHistory: cfg.Conversation.MaxHistory,
		Persona:    cfg.Conversation.Persona,
		Timeout:    cfg.GetReasoningTimeout(),
	}, hlog, feedback)

	gui := handlers.NewGUIHandler(access, auto, vis, feedback, clock, handlers.GUIConfig{
		MaxRetries:          cfg.GUI.MaxRetries,
		RetryBaseDelay:      cfg.GetRetryBaseDelay(),
		FuzzyMatchThreshold: cfg.GUI.FuzzyMatchThreshold,
		ExtraClickableRoles: cfg.GUI.ExtraClickableRoles,
	}, hlog, recorder)

	qa := handlers.NewQAHandler(access, browser, pdf, reason, vis, feedback, handlers.QAConfig{
		ExtractionBudget: cfg.GetExtractionBudget(),
		SummarizeBudget:  cfg.GetSummarizeBudget(),
		TotalBudget:      cfg.GetQATotalBudget(),
		MaxContentBytes:  cfg.QA.MaxContentBytes,
	}, hlog, recorder)

	minWait, maxWait := cfg.GetDeferredWaitBounds()
	def := handlers.NewDeferredHandler(machine, reason, postprocess.New(hlog), mouse, auto,
		lock, feedback, clock, handlers.DeferredConfig{
			DefaultWait:      cfg.GetDeferredWaitTimeout(),
			MinWait:          minWait,
			MaxWait:          maxWait,
			ReacquireTimeout: cfg.GetLockReacquireTimeout(),
			PasteThreshold:   cfg.GUI.TypeDirectMaxChars,
		}, hlog, recorder)

	registry := handlers.NewRegistry()
	registry.Register(types.KindGUIInteraction, gui)
	registry.Register(types.KindQuestionAnswering, qa)
	registry.Register(types.KindConversationalChat, conv)
	registry.Register(types.KindDeferredAction, def)

	recognizer := intent.NewRecognizer(reason, intent.Config{
		ConfidenceThreshold: cfg.Intent.ConfidenceThreshold,
		HistoryWindow:       cfg.Intent.HistoryWindow,
		Timeout:             cfg.GetIntentTimeout(),
		LockTimeout:         cfg.GetIntentLockTimeout(),
	}, logger.Named(logging.CategoryIntent), recorder)

	orch := orchestrator.New(recognizer, registry, lock, conv, jrn, feedback,
		orchestrator.Config{LockTimeout: cfg.GetLockAcquireTimeout()},
		logger.Named(logging.CategoryOrchestrator), recorder)

	runCtx, cancel := context.WithCancel(ctx)
	group, gctx := errgroup.WithContext(runCtx)

	group.Go(func() error {
		err := feedback.Run(gctx)
		if err == context.Canceled {
			return nil
		}
		return err
	})

	if cfg.Metrics.Enabled {
		group.Go(func() error {
			return serveMetrics(gctx, cfg.Metrics.Addr, recorder, logger.Named(logging.CategoryMetrics))
		})
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		orch:     orch,
		mouse:    mouse,
		machine:  machine,
		deferred: def,
		feedback: feedback,
		journal:  jrn,
		recorder: recorder,
		group:    group,
		cancel:   cancel,
	}, nil
}

// close tears the app down: monitors first, then workers, then storage.
func (a *app) close() {
	a.deferred.Close()
	a.cancel()
	if err := a.group.Wait(); err != nil && err != context.Canceled {
		a.logger.Warn("background worker exited with error", zap.Error(err))
	}
	if err := a.journal.Close(); err != nil {
		a.logger.Warn("journal close failed", zap.Error(err))
	}
}

// buildReasoningClient picks the provider from the config.
func buildReasoningClient(ctx context.Context, cfg *config.Config) (reasoning.Client, error) {
	switch cfg.Reasoning.Provider {
	case "gemini":
		return reasoning.NewGeminiClient(ctx, reasoning.GeminiConfig{
			APIKey: cfg.Reasoning.APIKey,
			Model:  cfg.Reasoning.Model,
		})
	case "openai":
		return reasoning.NewOpenAICompatClient(reasoning.OpenAIConfig{
			APIKey:  cfg.Reasoning.APIKey,
			BaseURL: cfg.Reasoning.BaseURL,
			Model:   cfg.Reasoning.Model,
		}), nil
	}
	return nil, fmt.Errorf("unknown reasoning provider %q (valid: %v)",
		cfg.Reasoning.Provider, config.ValidProviders)
}

// serveMetrics exposes the Prometheus endpoint until ctx is done.
func serveMetrics(ctx context.Context, addr string, rec *metrics.Recorder, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", rec.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}
	errs := make(chan error, 1)
	go func() { errs <- srv.ListenAndServe() }()

	logger.Info("metrics endpoint listening", zap.String("addr", addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		<-errs
		return nil
	case err := <-errs:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
