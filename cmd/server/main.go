package main

import (
	"context"
	"net/http"
	"time"

	"storyreel/internal/config"
	"storyreel/internal/fallback"
	"storyreel/internal/httpapi"
	"storyreel/internal/orchestrator"
	"storyreel/internal/pkg/logger"
	"storyreel/internal/pkg/shutdown"
	"storyreel/internal/provider/renderengine"
	"storyreel/internal/provider/speech"
	"storyreel/internal/provider/transcribe"
	"storyreel/internal/provider/visual"
	"storyreel/internal/publisher"
	"storyreel/internal/queue"
	"storyreel/internal/recordstore"
	"storyreel/internal/storage"
	"storyreel/internal/webhook"
	"storyreel/internal/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.NewDefault().LogFatal("failed to load configuration", err)
	}

	log := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		ServiceName: "storyreel",
	})

	log.Info("starting storyreel",
		"version", "0.1.0",
		"env", cfg.Server.Env,
	)

	ctx := context.Background()
	shutdownMgr := shutdown.NewManager(log, 30*time.Second)

	// Record store
	store, err := recordstore.New(ctx, cfg.Store)
	if err != nil {
		log.LogFatal("failed to open record store", err)
	}
	shutdownMgr.Register("record-store", func(ctx context.Context) error {
		return store.Close()
	})
	log.Info("record store ready", "backend", cfg.Store.Backend)

	// Object storage
	sp, err := storage.NewProvider(cfg.Storage)
	if err != nil {
		log.LogFatal("failed to initialize storage provider", err)
	}
	log.Info("storage provider initialized", "provider", sp.Provider())

	// Providers
	speechTimeout := time.Duration(cfg.Speech.TimeoutSec) * time.Second
	visualTimeout := time.Duration(cfg.Visual.TimeoutSec) * time.Second

	chain := make([]speech.Synthesizer, 0, len(cfg.Speech.Chain))
	for _, name := range cfg.Speech.Chain {
		switch name {
		case "elevenlabs":
			chain = append(chain, speech.NewElevenLabs(cfg.Speech.ElevenLabsBaseURL, cfg.Speech.ElevenLabsAPIKey, speechTimeout))
		case "openai":
			chain = append(chain, speech.NewOpenAI(cfg.Speech.OpenAIBaseURL, cfg.Speech.OpenAIAPIKey, speechTimeout))
		case "piper":
			chain = append(chain, speech.NewPiper(cfg.Speech.PiperBaseURL, speechTimeout))
		default:
			log.Warn("ignoring unknown speech provider in chain", "provider", name)
		}
	}

	resolver := fallback.NewResolver(fallback.Deps{
		SpeechChain: chain,
		VisualMode:  cfg.Visual.Mode,
		Runway:      visual.NewRunway(cfg.Visual.RunwayBaseURL, cfg.Visual.RunwayAPIKey, visualTimeout),
		Luma:        visual.NewLuma(cfg.Visual.LumaBaseURL, cfg.Visual.LumaAPIKey, visualTimeout),
		Stock:       visual.NewPexels(cfg.Visual.PexelsBaseURL, cfg.Visual.PexelsAPIKey, visualTimeout),
		Log:         log,
	})

	transcriber := transcribe.NewWhisperClient(cfg.Transcribe.BaseURL,
		time.Duration(cfg.Transcribe.TimeoutSec)*time.Second)
	engine := renderengine.NewHTTPClient(cfg.Render.EngineBaseURL,
		time.Duration(cfg.Render.TimeoutSec)*time.Second)

	// Workflow tracker
	tracker, err := workflow.NewTracker(ctx, store, log)
	if err != nil {
		log.LogFatal("failed to initialize workflow tracker", err)
	}

	// Webhook service + retry worker
	webhooks, err := webhook.NewService(ctx, webhook.Deps{
		Store:           store,
		DeliveryTimeout: cfg.Webhook.DeliveryTimeout(),
		Log:             log,
	})
	if err != nil {
		log.LogFatal("failed to initialize webhook service", err)
	}

	workerCtx, cancelWorkers := context.WithCancel(ctx)
	shutdownMgr.RegisterSimple("workers", cancelWorkers)

	go webhooks.RunRetryWorker(workerCtx, cfg.Webhook.RetryInterval())

	// Queue + orchestrator
	q, err := queue.New(cfg.Queue)
	if err != nil {
		log.LogFatal("failed to initialize job queue", err)
	}
	shutdownMgr.Register("queue", func(ctx context.Context) error {
		return q.Close()
	})

	orch := orchestrator.New(orchestrator.Deps{
		Queue:         q,
		Tracker:       tracker,
		Webhooks:      webhooks,
		Resolver:      resolver,
		Transcriber:   transcriber,
		Engine:        engine,
		Storage:       sp,
		TempDir:       cfg.Render.TempDir,
		DefaultVoice:  cfg.Speech.Voice,
		PaddingBackMs: cfg.Render.PaddingBackMs,
		VisualRetries: cfg.Visual.MaxRetries,
		VisualTimeout: visualTimeout,
		Log:           log,
	})
	go func() {
		if err := orch.Run(workerCtx); err != nil && workerCtx.Err() == nil {
			log.LogFatal("render worker stopped unexpectedly", err)
		}
	}()

	pub := publisher.New(publisher.Deps{
		Tracker:  tracker,
		Storage:  sp,
		Webhooks: webhooks,
		Log:      log,
	})

	// HTTP server
	router := httpapi.NewRouter(httpapi.Deps{
		Orchestrator: orch,
		Tracker:      tracker,
		Webhooks:     webhooks,
		Publisher:    pub,
		Storage:      sp,
		Log:          log,
	})

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	shutdownMgr.Register("http-server", func(ctx context.Context) error {
		log.Info("shutting down HTTP server")
		return server.Shutdown(ctx)
	})

	go func() {
		log.Info("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogFatal("HTTP server failed", err)
		}
	}()

	shutdownMgr.Wait()
}
