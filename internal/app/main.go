package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"cloud.google.com/go/firestore"
	"golang.org/x/sync/errgroup"

	"gmat-zalo-bot/internal/adapters"
	"gmat-zalo-bot/internal/bot"
	"gmat-zalo-bot/internal/catalog"
	"gmat-zalo-bot/internal/config"
	"gmat-zalo-bot/internal/gmat"
	"gmat-zalo-bot/internal/hosting"
	"gmat-zalo-bot/internal/render"
	"gmat-zalo-bot/internal/status"
	"gmat-zalo-bot/internal/storage"
	"gmat-zalo-bot/internal/zalo"
)

func Main() {
	logger := log.New(os.Stdout, "", log.LstdFlags|log.Lmicroseconds)
	if err := run(logger, os.Args[1:]); err != nil {
		logger.Fatalf("%v", err)
	}
}

func run(logger *log.Logger, args []string) error {
	cfg, err := config.Load(args)
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gmatClient := gmat.NewClient(cfg.GMATBaseURL, 0)
	logger.Printf("fetching GMAT question index from %s", cfg.GMATBaseURL)
	questions, err := gmatClient.LoadCatalog(ctx)
	if err != nil {
		return fmt.Errorf("load question catalog: %w", err)
	}

	if cfg.ShowStats {
		printStats(logger, questions)
		return nil
	}

	var store *storage.Store
	if cfg.FirestoreProject != "" {
		fireClient, err := firestore.NewClient(ctx, cfg.FirestoreProject)
		if err != nil {
			return fmt.Errorf("create firestore client: %w", err)
		}
		defer func() {
			if err := fireClient.Close(); err != nil {
				logger.Printf("close firestore client: %v", err)
			}
		}()
		store = storage.NewStore(fireClient)
		logger.Printf("chat registry enabled (project %s)", cfg.FirestoreProject)
	}

	var hostClient *hosting.Client
	var chat bot.ChatClient
	if cfg.NeedsChat() {
		hostClient, err = hosting.NewClient(hosting.Config{
			Token:      cfg.GitHubToken,
			Repository: cfg.GitHubRepository,
			ReleaseID:  cfg.GitHubReleaseID,
			ReleaseTag: cfg.GitHubReleaseTag,
			APIURL:     cfg.GitHubAPIURL,
			UploadsURL: cfg.GitHubUploadsURL,
		})
		if err != nil {
			return fmt.Errorf("configure image hosting: %w", err)
		}
		chat = adapters.NewChatClient(zalo.NewClient(cfg.ZaloBaseURL, cfg.BotToken, cfg.PollTimeout))
	}

	pipeline := buildPipeline(logger, cfg, gmatClient, hostClient, chat)

	if cfg.BotService {
		var registry bot.ChatRegistry
		if store != nil {
			registry = adapters.NewChatRegistry(store)
		}
		return runService(ctx, logger, cfg, questions, chat, registry, pipeline)
	}

	once := &oneShot{
		logger:    logger,
		selector:  catalog.NewSelector(),
		questions: questions,
		pipeline:  pipeline,
		updates:   chat,
	}
	if store != nil {
		once.registry = store
	}
	return once.run(ctx, cfg)
}

// buildPipeline accepts a nil hosting client and chat for render-only runs.
func buildPipeline(
	logger *log.Logger,
	cfg config.Config,
	gmatClient *gmat.Client,
	hostClient *hosting.Client,
	chat bot.ChatClient,
) *bot.Pipeline {
	renderer := render.NewRenderer(render.Options{
		Tool:      cfg.RenderTool,
		OutputDir: cfg.OutputDir,
		Width:     cfg.RenderWidth,
		Quality:   cfg.RenderQuality,
	})
	return bot.NewPipeline(
		logger,
		adapters.NewContentFetcher(gmatClient),
		adapters.NewImageRenderer(renderer),
		adapters.NewArtifactHoster(hostClient),
		chat,
		pipelineConfig(cfg),
	)
}

func pipelineConfig(cfg config.Config) bot.PipelineConfig {
	pc := bot.DefaultPipelineConfig()
	pc.CaptionPrefix = cfg.CaptionPrefix
	pc.Fetch.MaxAttempts = cfg.FetchMaxAttempts
	pc.Fetch.Delay = cfg.FetchRetryDelay
	pc.Render.MaxAttempts = cfg.RenderMaxAttempts
	pc.Render.Delay = cfg.FetchRetryDelay
	pc.Host.MaxAttempts = cfg.HostMaxAttempts
	pc.Host.Delay = cfg.FetchRetryDelay
	pc.SendConcurrency = cfg.SendConcurrency
	pc.KeepImages = cfg.GenerateImages
	return pc
}

func runService(
	ctx context.Context,
	logger *log.Logger,
	cfg config.Config,
	questions catalog.Catalog,
	chat bot.ChatClient,
	registry bot.ChatRegistry,
	pipeline *bot.Pipeline,
) error {
	service := bot.NewService(logger, chat, registry, catalog.NewSelector(), questions, pipeline, cfg.Category)
	logger.Printf("starting bot service (default category %s, %d questions loaded)", cfg.Category, questions.Total())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return service.Run(gctx)
	})
	if cfg.StatusAddr != "" {
		g.Go(func() error {
			return status.Serve(gctx, logger, cfg.StatusAddr, status.NewRouter(logger, questions))
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("bot service: %w", err)
	}
	logger.Printf("shutdown complete")
	return nil
}

func printStats(logger *log.Logger, questions catalog.Catalog) {
	logger.Printf("GMAT question database")
	for _, s := range questions.Stats() {
		note := ""
		if !s.Supported {
			note = " (not supported)"
		}
		logger.Printf("  %s - %s: %d questions%s", s.Category.Code(), s.Category, s.Count, note)
	}
	logger.Printf("total: %d questions", questions.Total())
	logger.Printf("%s questions are listed but cannot be requested", catalog.Excluded)
}
