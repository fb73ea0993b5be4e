package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minio/minio-go/v7"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kmish9685/Persona-AI-sub000/internal/config"
	"github.com/kmish9685/Persona-AI-sub000/internal/infra/httpclient"
	"github.com/kmish9685/Persona-AI-sub000/internal/infra/llm"
	s3infra "github.com/kmish9685/Persona-AI-sub000/internal/infra/s3"
	"github.com/kmish9685/Persona-AI-sub000/internal/jobs/retention"
	pgrepo "github.com/kmish9685/Persona-AI-sub000/internal/repo/postgres"
	redrepo "github.com/kmish9685/Persona-AI-sub000/internal/repo/redis"
	analysissvc "github.com/kmish9685/Persona-AI-sub000/internal/services/analysis"
	authsvc "github.com/kmish9685/Persona-AI-sub000/internal/services/auth"
	billingsvc "github.com/kmish9685/Persona-AI-sub000/internal/services/billing"
	chatsvc "github.com/kmish9685/Persona-AI-sub000/internal/services/chat"
	quotasvc "github.com/kmish9685/Persona-AI-sub000/internal/services/quota"
	ratesvc "github.com/kmish9685/Persona-AI-sub000/internal/services/rate"
)

type App struct {
	cfg          config.Config
	logger       *zap.Logger
	server       *http.Server
	postgres     *pgxpool.Pool
	redis        *goredis.Client
	s3           *minio.Client
	httpRouter   http.Handler
	retentionJob *retention.Job
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, log)

	// The gate fails open on storage errors, so a dead postgres at boot means
	// degraded quota accounting, not a dead product.
	var pool *pgxpool.Pool
	if p, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN); err != nil {
		log.Warn("postgres init failed, continuing in degraded mode", zap.Error(err))
	} else {
		pool = p
	}

	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	windowRepo := redrepo.NewWindowRepo(redisClient)
	userQuotaRepo := pgrepo.NewUserQuotaRepo(pool)
	globalStatsRepo := pgrepo.NewGlobalStatsRepo(pool)
	analysisRepo := pgrepo.NewAnalysisRepo(pool)
	billingEventRepo := pgrepo.NewBillingEventRepo(pool)

	jwtManager := authsvc.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL)
	rateLimiter := ratesvc.NewLimiter(windowRepo, cfg.Limits.BurstPerMinute)
	quotaService := quotasvc.NewService(userQuotaRepo, globalStatsRepo, quotasvc.Config{
		FreeMessagesPerDay: cfg.Limits.FreeMessagesPerDay,
		GlobalDailyCap:     cfg.Limits.GlobalDailyCap,
	}, log)

	llmClient, err := llm.NewClient(llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	}, httpclient.New(cfg.LLM.Timeout))
	if err != nil {
		return nil, fmt.Errorf("create llm client: %w", err)
	}

	chatService := chatsvc.NewService(quotaService, llmClient, rateLimiter, chatsvc.Config{
		SystemPrompt:    cfg.Chat.SystemPrompt,
		MaxHistoryTurns: cfg.Chat.MaxHistoryTurns,
		MaxReplyWords:   cfg.Chat.MaxReplyWords,
		DenylistPhrases: cfg.Chat.DenylistPhrases,
	})

	analysisService := analysissvc.NewService(quotaService, llmClient, analysisRepo, analysissvc.Config{
		SystemPrompt: cfg.Chat.SystemPrompt,
		Model:        cfg.LLM.Model,
	}, log)
	analysisService.AttachLimiter(rateLimiter)

	var s3Client *minio.Client
	if c, err := s3infra.NewClient(s3infra.Config{
		Endpoint:  cfg.S3.Endpoint,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		UseSSL:    cfg.S3.UseSSL,
	}); err != nil {
		log.Warn("s3 init failed, continuing without transcript archive", zap.Error(err))
	} else {
		s3Client = c
		analysisService.AttachArchive(analysissvc.NewS3Archive(s3Client, cfg.S3.Bucket))
	}

	billingService := billingsvc.NewService(billingEventRepo, userQuotaRepo)
	retentionJob := retention.New(userQuotaRepo, cfg.Retention.IdleIPRows, cfg.Retention.Interval, log)

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	RegisterRoutes(r, Dependencies{
		ChatService:     chatService,
		AnalysisService: analysisService,
		QuotaService:    quotaService,
		BillingService:  billingService,
		JWTManager:      jwtManager,
		Logger:          log,
	})

	return &App{
		cfg:          cfg,
		logger:       log,
		server:       server,
		postgres:     pool,
		redis:        redisClient,
		s3:           s3Client,
		httpRouter:   r,
		retentionJob: retentionJob,
	}, nil
}

func (a *App) Run() error {
	a.logger.Info("api server started", zap.String("addr", a.cfg.HTTP.Addr))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// StartJobs launches the background retention loop. It returns immediately;
// the loop stops when ctx is cancelled.
func (a *App) StartJobs(ctx context.Context) {
	if a.postgres == nil {
		a.logger.Warn("retention job disabled, postgres unavailable")
		return
	}
	go a.retentionJob.Start(ctx)
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}
