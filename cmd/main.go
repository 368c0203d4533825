package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"jertine-site/handler"
	siteconfig "jertine-site/internal/config"
	"jertine-site/internal/faq"
	"jertine-site/internal/integrations/gemini"
	"jertine-site/internal/integrations/openai"
	"jertine-site/internal/integrations/paramstore"
	"jertine-site/internal/integrations/webhook"
	"jertine-site/internal/logging"
	"jertine-site/internal/ratelimit"
	"jertine-site/internal/repository"
	"jertine-site/internal/telemetry"
	"jertine-site/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := siteconfig.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to create logger:", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	metrics := telemetry.NewMetrics()

	// ---- AWS SDK config (only when a component needs it) ----
	var awsCfg *aws.Config
	if cfg.ParamPrefix != "" || cfg.RateLimit.Backend == siteconfig.BackendDynamoDB {
		c, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			log.Fatal("failed to load AWS config", zap.Error(err))
		}
		awsCfg = &c
	}

	var secrets paramstore.Getter
	if cfg.ParamPrefix != "" {
		ssmClient, err := paramstore.New(awsssm.NewFromConfig(*awsCfg))
		if err != nil {
			log.Fatal("failed to create SSM client", zap.Error(err))
		}
		secrets = ssmClient
	}

	// ---- Inquiry Gatekeeper ----
	store, err := newRateStore(ctx, cfg, awsCfg)
	if err != nil {
		log.Fatal("failed to create rate limit store", zap.String("backend", cfg.RateLimit.Backend), zap.Error(err))
	}
	limiter, err := ratelimit.New(store, ratelimit.DefaultWindow, ratelimit.DefaultMaxAttempts)
	if err != nil {
		log.Fatal("failed to create rate limiter", zap.Error(err))
	}

	bearer, err := resolveSecret(ctx, secrets, cfg.Webhook.BearerToken, cfg.SecretName("contact/webhook-bearer-token"))
	if err != nil {
		log.Fatal("failed to resolve webhook bearer token", zap.Error(err))
	}
	signingSecret, err := resolveSecret(ctx, secrets, cfg.Webhook.SigningSecret, cfg.SecretName("contact/webhook-signing-secret"))
	if err != nil {
		log.Fatal("failed to resolve webhook signing secret", zap.Error(err))
	}
	deliverer := webhook.NewClient(webhook.Config{
		URL:           cfg.Webhook.URL,
		BearerToken:   bearer,
		SigningSecret: signingSecret,
		Timeout:       cfg.Webhook.Timeout,
	}, webhook.WithLogger(log), webhook.WithAttemptObserver(metrics.WebhookAttempt))
	if !deliverer.Configured() {
		log.Warn("CONTACT_WEBHOOK_URL is not set; accepted inquiries will only be logged")
	}

	contactService, err := usecase.NewContactService(limiter, deliverer, log, metrics)
	if err != nil {
		log.Fatal("failed to create contact service", zap.Error(err))
	}

	// ---- FAQ Resolver ----
	corpus, err := faq.Load(cfg.FAQ.CorpusPath)
	if err != nil {
		log.Fatal("failed to load faq corpus", zap.Error(err))
	}
	answerer, err := newAnswerer(ctx, cfg, secrets)
	if err != nil {
		log.Fatal("failed to create faq provider", zap.String("provider", cfg.FAQ.Provider), zap.Error(err))
	}
	faqService, err := usecase.NewFAQService(corpus, answerer, cfg.FAQ.Timeout, log, metrics)
	if err != nil {
		log.Fatal("failed to create faq service", zap.Error(err))
	}

	// ---- Handler ----
	h, err := handler.NewHandler(contactService, faqService, log)
	if err != nil {
		log.Fatal("failed to create handler", zap.Error(err))
	}

	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		lambda.Start(h.Handle)
		return
	}

	gin.SetMode(gin.ReleaseMode)
	if err := handler.Serve(ctx, ":"+strconv.Itoa(cfg.Port), handler.NewRouter(h, metrics.Handler()), log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func newRateStore(ctx context.Context, cfg *siteconfig.Config, awsCfg *aws.Config) (repository.RateStore, error) {
	switch cfg.RateLimit.Backend {
	case siteconfig.BackendRedis:
		client, err := repository.NewRedisClient(ctx, repository.RedisConfig{
			Address:  cfg.RateLimit.RedisAddress,
			Password: cfg.RateLimit.RedisPassword,
			DB:       cfg.RateLimit.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		return repository.NewRedisStore(client)
	case siteconfig.BackendDynamoDB:
		return repository.NewDynamoStore(awsdynamodb.NewFromConfig(*awsCfg), cfg.RateLimit.Table)
	default:
		return repository.NewMemoryStore(cfg.RateLimit.MaxKeys), nil
	}
}

// newAnswerer returns the configured FAQ provider, or nil for matcher-only mode.
func newAnswerer(ctx context.Context, cfg *siteconfig.Config, secrets paramstore.Getter) (usecase.Answerer, error) {
	switch cfg.FAQ.Provider {
	case siteconfig.ProviderOpenAI:
		var opts []openai.Option
		if cfg.FAQ.OpenAIBaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.FAQ.OpenAIBaseURL))
		}
		if cfg.FAQ.OpenAIModel != "" {
			opts = append(opts, openai.WithModel(cfg.FAQ.OpenAIModel))
		}
		if cfg.FAQ.OpenAIAPIKey != "" || secrets == nil {
			return openai.NewClient(paramstore.Static{"OPENAI_API_KEY": cfg.FAQ.OpenAIAPIKey}, "OPENAI_API_KEY", opts...)
		}
		return openai.NewClient(secrets, cfg.SecretName("open-ai-token"), opts...)
	case siteconfig.ProviderGemini:
		key, err := resolveSecret(ctx, secrets, cfg.FAQ.GeminiAPIKey, cfg.SecretName("gemini-api-key"))
		if err != nil {
			return nil, err
		}
		return gemini.NewClient(ctx, key, cfg.FAQ.GeminiModel)
	default:
		return nil, nil
	}
}

// resolveSecret prefers the environment value and falls back to SSM when a
// parameter prefix is configured.
func resolveSecret(ctx context.Context, secrets paramstore.Getter, envValue, name string) (string, error) {
	if envValue != "" || secrets == nil {
		return envValue, nil
	}
	return paramstore.OptionalSecret(ctx, secrets, name)
}
