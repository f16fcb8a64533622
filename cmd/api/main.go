package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/signalhq/signal/cmd/mainconfig"
	"github.com/signalhq/signal/internal/accounts"
	"github.com/signalhq/signal/internal/api/router"
	"github.com/signalhq/signal/internal/billing"
	"github.com/signalhq/signal/internal/completion"
	appconfig "github.com/signalhq/signal/internal/config"
	"github.com/signalhq/signal/internal/insights"
	"github.com/signalhq/signal/internal/notify"
	"github.com/signalhq/signal/internal/observability/metrics"
	"github.com/signalhq/signal/internal/prompts"
	"github.com/signalhq/signal/internal/quota"
	"github.com/signalhq/signal/internal/signals"
	"github.com/signalhq/signal/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel, cfg.Env)
	logger.Info("starting signal API server", "env", cfg.Env, "port", cfg.Port)

	ctx := context.Background()

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create pgx pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	sqlDB, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open sql db", "error", err)
		os.Exit(1)
	}
	defer func() { _ = sqlDB.Close() }()

	redisClient := newRedisClient(ctx, cfg, logger)

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	promRegistry := prometheus.NewRegistry()
	completionMetrics := metrics.NewCompletionMetrics(promRegistry)
	signalMetrics := metrics.NewSignalMetrics(promRegistry)

	llmClient, modelID, err := buildLLMClient(ctx, cfg, awsCfg, logger)
	if err != nil {
		logger.Error("failed to configure completion client", "error", err)
		os.Exit(1)
	}
	gateway := completion.NewGateway(llmClient, modelID, cfg.CompletionTimeout, completionMetrics, logger)

	accountStore := accounts.NewStore(sqlDB)
	signalStore := signals.NewStore(pool)
	insightStore := insights.NewStore(pool)
	registry := prompts.NewRegistry(accountStore)

	gate := quota.NewGate(accountStore, signalStore, redisClient, cfg.FreePlanResponseLimit, cfg.QuotaCacheTTL, logger)

	generator := signals.NewGenerator(gateway, registry, signalStore, cfg.PublicBaseURL, signalMetrics, logger)
	engine := signals.NewEngine(gateway, signalMetrics, logger)
	analyzer := signals.NewAnalyzer(gateway, signalStore, signalMetrics, logger)
	signalsHandler := signals.NewHandler(signalStore, generator, engine, analyzer, gateway, registry,
		gate, buildOutreachMailer(cfg, awsCfg, logger), cfg.PublicBaseURL, logger)

	checkout := billing.NewCheckoutService(cfg.StripeSecretKey, cfg.StripePriceID,
		stripeReturnURL(cfg, cfg.StripeSuccessURL, "success=true"),
		stripeReturnURL(cfg, cfg.StripeCancelURL, "canceled=true"), logger)
	billingHandler := billing.NewHandler(checkout, accountStore, gate, cfg.StripeWebhookSecret, logger)

	insightsHandler := insights.NewHandler(insights.NewService(insightStore, gateway, logger), logger)
	settingsHandler := accounts.NewHandler(accountStore, logger)

	r := router.New(&router.Config{
		Logger:             logger,
		SignalsHandler:     signalsHandler,
		BillingHandler:     billingHandler,
		InsightsHandler:    insightsHandler,
		SettingsHandler:    settingsHandler,
		SessionSecret:      cfg.SessionJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		MetricsHandler:     promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}),
		RateLimitPerSecond: 5,
		RateLimitBurst:     20,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// newRedisClient returns nil when redis is unreachable; the quota gate
// degrades to direct lookups without a cache.
func newRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unreachable, quota cache disabled", "addr", cfg.RedisAddr, "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// buildLLMClient picks the completion backend: Bedrock, Gemini, or
// Bedrock with Gemini fallback when both are configured.
func buildLLMClient(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (completion.LLMClient, string, error) {
	var bedrockClient completion.LLMClient
	if cfg.BedrockModelID != "" {
		bedrockClient = completion.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg))
	}
	var geminiClient completion.LLMClient
	if cfg.GeminiAPIKey != "" {
		gc, err := completion.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			return nil, "", fmt.Errorf("gemini client: %w", err)
		}
		geminiClient = gc
	}

	switch cfg.LLMProvider {
	case "bedrock":
		if bedrockClient == nil {
			return nil, "", errors.New("BEDROCK_MODEL_ID is required for LLM_PROVIDER=bedrock")
		}
		return bedrockClient, cfg.BedrockModelID, nil
	case "gemini":
		if geminiClient == nil {
			return nil, "", errors.New("GEMINI_API_KEY is required for LLM_PROVIDER=gemini")
		}
		return geminiClient, cfg.GeminiModelID, nil
	default:
		switch {
		case bedrockClient != nil && geminiClient != nil:
			return completion.NewFallbackLLMClient(bedrockClient, geminiClient, logger), cfg.BedrockModelID, nil
		case bedrockClient != nil:
			return bedrockClient, cfg.BedrockModelID, nil
		case geminiClient != nil:
			return geminiClient, cfg.GeminiModelID, nil
		}
		return nil, "", errors.New("no completion backend configured; set BEDROCK_MODEL_ID or GEMINI_API_KEY")
	}
}

// buildOutreachMailer returns nil when no provider is configured; the
// send endpoint reports email as unavailable in that case.
func buildOutreachMailer(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) signals.EmailSender {
	var sender notify.EmailSender
	switch cfg.EmailProvider {
	case "sendgrid":
		if s := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); s != nil {
			sender = s
		}
	case "ses":
		if s := notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SESFromName,
		}, logger); s != nil {
			sender = s
		}
	case "stub":
		sender = notify.NewStubEmailSender(logger)
	}
	if sender == nil {
		logger.Info("outreach email disabled")
		return nil
	}
	return notify.NewOutreachMailer(sender)
}

func stripeReturnURL(cfg *appconfig.Config, override, query string) string {
	if override != "" {
		return override
	}
	return fmt.Sprintf("%s/dashboard/billing?%s", cfg.PublicBaseURL, query)
}
