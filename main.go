package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "mailsync-backend/cmd/api"
	authdomain "mailsync-backend/internal/auth/domain"
	authRepo "mailsync-backend/internal/auth/repository"
	authUsecase "mailsync-backend/internal/auth/usecase"
	emaildomain "mailsync-backend/internal/email/domain"
	emailRepo "mailsync-backend/internal/email/repository"
	"mailsync-backend/internal/email/source"
	emailUsecase "mailsync-backend/internal/email/usecase"
	insightUsecase "mailsync-backend/internal/insight/usecase"
	"mailsync-backend/internal/notification"
	"mailsync-backend/pkg/ai"
	"mailsync-backend/pkg/cache"
	"mailsync-backend/pkg/config"
	"mailsync-backend/pkg/crypto"
	"mailsync-backend/pkg/database"
	"mailsync-backend/pkg/gmail"
	"mailsync-backend/pkg/imap"
	"mailsync-backend/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log := logger.New(cfg.IsDevelopment(), cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cipher, err := crypto.NewTokenCipher(cfg.SessionSecret)
	if err != nil {
		log.Fatal("failed to init token cipher", zap.Error(err))
	}

	// Users live in Postgres when configured, in memory otherwise
	var userRepo authRepo.UserStore
	var summaryRepo emailRepo.EmailSummaryRepository
	if cfg.DatabaseURL != "" {
		db, err := database.NewPostgresConnection(cfg.DatabaseURL)
		if err != nil {
			log.Fatal("failed to connect to database", zap.Error(err))
		}
		if err := db.AutoMigrate(&authdomain.User{}, &emaildomain.EmailSummary{}); err != nil {
			log.Fatal("failed to migrate database", zap.Error(err))
		}
		userRepo = authRepo.NewUserRepository(db, cipher)
		summaryRepo = emailRepo.NewEmailSummaryRepository(db)
	} else {
		log.Warn("DATABASE_URL not set, users are kept in memory")
		userRepo = authRepo.NewMemoryUserRepository()
	}

	if cfg.RedisAddr != "" {
		rdb, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Warn("redis unavailable, falling back", zap.Error(err))
		} else {
			defer rdb.Close()
			summaryRepo = emailRepo.NewRedisSummaryRepository(rdb, cfg.SummaryCacheTTL)
		}
	}

	src := buildSource(cfg, log)
	log.Info("email source selected", zap.String("source", src.Name()))

	// Runtime settings back the model getters so PUT /api/settings/ai applies live
	api.InitRuntimeConfig(cfg)
	completer, err := ai.NewCompleter(ai.Config{
		Provider:         ai.ProviderType(cfg.AIProvider),
		OpenAIAPIKey:     cfg.OpenAIAPIKey,
		OpenAIBaseURL:    cfg.OpenAIBaseURL,
		GetOpenAIModel:   api.GetRuntimeOpenAIModel,
		GeminiAPIKey:     cfg.GeminiAPIKey,
		GetOllamaBaseURL: api.GetRuntimeOllamaBaseURL,
		GetOllamaModel:   api.GetRuntimeOllamaModel,
		Logger:           log.Named("ai"),
	})
	if err != nil {
		log.Fatal("failed to init AI provider", zap.Error(err))
	}

	topicName := ""
	if cfg.GoogleProjectID != "" {
		topicName = notification.TopicPath(cfg.GoogleProjectID, cfg.GooglePubSubTopic)
	}

	// Initialize use cases (dependency injection)
	oauthConfig := authUsecase.NewOAuthConfig(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.RedirectURI)
	authUsecaseInstance := authUsecase.NewAuthUsecase(userRepo, authUsecase.NewGoogleVerifier(cfg.GoogleClientID), oauthConfig, cfg, log)
	emailUsecaseInstance := emailUsecase.NewEmailUsecase(userRepo, src, topicName, log)
	insightUsecaseInstance := insightUsecase.NewInsightUsecase(emailUsecaseInstance, completer, summaryRepo, api.GetRuntimeInsightSettings, log)

	if summaryRepo != nil {
		worker := insightUsecase.NewSummaryWorkerService(summaryRepo, insightUsecaseInstance.SummarizeEmail, 3, log)
		worker.Start(ctx)
		defer worker.Stop()
		insightUsecaseInstance.SetSummaryWorker(worker)
	}

	prewarm := func(ctx context.Context, user *authdomain.User) {
		if err := insightUsecaseInstance.PrewarmSummaries(ctx, user); err != nil {
			log.Warn("summary prewarm failed", zap.String("user_id", user.ID), zap.Error(err))
		}
	}

	// Linking a mailbox starts the Gmail watch and warms the digest summaries
	authUsecaseInstance.SetMailboxLinkedCallback(func(user *authdomain.User) {
		go func() {
			bgCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			if err := emailUsecaseInstance.WatchMailbox(bgCtx, user); err != nil {
				log.Warn("mailbox watch failed", zap.String("user_id", user.ID), zap.Error(err))
			}
			prewarm(bgCtx, user)
		}()
	})

	// Push notifications only run when a Pub/Sub project is configured
	if topicName != "" {
		notifService, err := notification.NewService(ctx, cfg.GoogleProjectID, topicName, cfg.GoogleCredentials, userRepo, log)
		if err != nil {
			log.Error("failed to init notification service", zap.Error(err))
		} else {
			defer notifService.Close()
			notifService.SetChangeHandler(prewarm)
			go func() {
				if err := notifService.Start(ctx); err != nil {
					log.Error("notification service stopped", zap.Error(err))
				}
			}()
		}
	} else {
		log.Info("GOOGLE_PROJECT_ID not set, push notifications disabled")
	}

	handler := api.NewHandler(authUsecaseInstance, emailUsecaseInstance, insightUsecaseInstance, cfg, log)
	if err := handler.Start(ctx, ":"+cfg.Port); err != nil {
		log.Error("server error", zap.Error(err))
	}
}

func buildSource(cfg *config.Config, log *zap.Logger) source.EmailSource {
	switch cfg.EmailSource {
	case "gmail":
		return gmail.NewService(cfg.GoogleClientID, cfg.GoogleClientSecret, log)
	case "imap":
		svc, err := imap.NewService(imap.Config{
			Addr:     cfg.IMAPAddr,
			Username: cfg.IMAPUsername,
			Password: cfg.IMAPPassword,
		}, log)
		if err != nil {
			log.Fatal("failed to init IMAP source", zap.Error(err))
		}
		return svc
	default:
		return source.NewSampleSource(time.Now)
	}
}
