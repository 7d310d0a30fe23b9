package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/samber/lo"

	"github.com/dskvich/polychat/pkg/api"
	"github.com/dskvich/polychat/pkg/api/middleware"
	"github.com/dskvich/polychat/pkg/auth"
	"github.com/dskvich/polychat/pkg/database"
	"github.com/dskvich/polychat/pkg/domain"
	"github.com/dskvich/polychat/pkg/fallback"
	"github.com/dskvich/polychat/pkg/logger"
	"github.com/dskvich/polychat/pkg/notify"
	"github.com/dskvich/polychat/pkg/payments"
	"github.com/dskvich/polychat/pkg/personas"
	"github.com/dskvich/polychat/pkg/provider"
	"github.com/dskvich/polychat/pkg/repository"
	"github.com/dskvich/polychat/pkg/services"
	"github.com/dskvich/polychat/pkg/workers"
)

type Config struct {
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogNoColor      bool          `env:"LOG_NO_COLOR"`

	PgURL  string `env:"DATABASE_URL"`
	PgHost string `env:"DB_HOST" envDefault:"localhost:65432"`

	JWTSecret     string        `env:"JWT_SECRET,required"`
	JWTTTL        time.Duration `env:"JWT_TTL" envDefault:"720h"`
	SignupBalance int64         `env:"SIGNUP_TOKEN_BALANCE" envDefault:"50000"`

	OpenAIToken   string `env:"OPEN_AI_TOKEN,required"`
	OpenAIBaseURL string `env:"OPEN_AI_BASE_URL"`
	OpenAIModel   string `env:"OPEN_AI_MODEL"`

	ClaudeToken   string `env:"CLAUDE_API_KEY"`
	ClaudeBaseURL string `env:"CLAUDE_BASE_URL"`
	ClaudeModel   string `env:"CLAUDE_MODEL"`

	PerplexityToken   string `env:"PERPLEXITY_API_KEY"`
	PerplexityBaseURL string `env:"PERPLEXITY_BASE_URL"`
	PerplexityModel   string `env:"PERPLEXITY_MODEL"`

	GeminiToken   string `env:"GEMINI_API_KEY"`
	GeminiBaseURL string `env:"GEMINI_BASE_URL"`
	GeminiModel   string `env:"GEMINI_MODEL"`

	XToken   string `env:"X_API_KEY"`
	XBaseURL string `env:"X_BASE_URL"`
	XModel   string `env:"X_MODEL"`

	PersonasFile      string                `env:"PERSONAS_FILE"`
	GenerationTimeout time.Duration         `env:"GENERATION_TIMEOUT" envDefault:"5m"`
	TitleTimeout      time.Duration         `env:"TITLE_TIMEOUT" envDefault:"10s"`
	FallbackOrder     []domain.ProviderName `env:"FALLBACK_ORDER" envSeparator:","`
	RequireBalance    bool                  `env:"REQUIRE_TOKEN_BALANCE" envDefault:"false"`

	RateLimitPerMinute int `env:"RATE_LIMIT_PER_MINUTE" envDefault:"60"`
	RateLimitBurst     int `env:"RATE_LIMIT_BURST" envDefault:"20"`

	TelegramBotToken      string        `env:"TELEGRAM_BOT_TOKEN"`
	TelegramAlertChatIDs  []int64       `env:"TELEGRAM_ALERT_CHAT_IDS" envSeparator:" "`
	TelegramAlertCooldown time.Duration `env:"TELEGRAM_ALERT_COOLDOWN" envDefault:"15m"`

	StripeSecretKey     string            `env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string            `env:"STRIPE_WEBHOOK_SECRET"`
	StripeSuccessURL    string            `env:"STRIPE_SUCCESS_URL" envDefault:"http://localhost:3000/billing/success"`
	StripeCancelURL     string            `env:"STRIPE_CANCEL_URL" envDefault:"http://localhost:3000/billing/cancel"`
	StripePriceIDs      map[string]string `env:"STRIPE_PRICE_IDS" envSeparator:"," envKeyValSeparator:":"`
}

func main() {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		slog.Error("parsing env config", logger.Err(err))
		os.Exit(1)
	}

	slog.SetDefault(slog.New(logger.NewHandler(os.Stderr, logger.NewOptions(cfg.LogLevel, cfg.LogNoColor))))

	if err := runMain(cfg); err != nil {
		slog.Error("shutting down due to error", logger.Err(err))
		os.Exit(1)
	}
	slog.Info("shutdown complete")
}

func runMain(cfg Config) error {
	workerGroup, err := setupWorkers(cfg)
	if err != nil {
		return err
	}

	ctx, cancelFn := context.WithCancel(context.Background())
	defer cancelFn()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case s := <-sigCh:
			slog.Info("shutting down due to signal", "signal", s.String())
			cancelFn()
		case <-ctx.Done():
		}
	}()

	return workerGroup.Start(ctx)
}

func setupWorkers(cfg Config) (workers.Group, error) {
	db, err := database.NewPostgres(cfg.PgURL, cfg.PgHost)
	if err != nil {
		return nil, fmt.Errorf("creating db: %w", err)
	}

	catalog, err := personas.Load(cfg.PersonasFile)
	if err != nil {
		return nil, fmt.Errorf("loading personas: %w", err)
	}

	authenticator, err := auth.NewAuthenticator(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		return nil, fmt.Errorf("creating authenticator: %w", err)
	}

	httpClient := &http.Client{}
	registry := provider.NewRegistry(providerConfig(cfg, httpClient))

	notifier, err := newNotifier(cfg, httpClient)
	if err != nil {
		return nil, err
	}

	checkout, err := newCheckout(cfg)
	if err != nil {
		return nil, err
	}

	userRepository := repository.NewUserRepository(db)
	chatRepository := repository.NewChatRepository(db)
	messageRepository := repository.NewMessageRepository(db)
	promptRepository := repository.NewPromptsRepository(db)
	paymentRepository := repository.NewPaymentRepository(db)

	chatService := services.NewChatService(
		chatRepository,
		messageRepository,
		userRepository,
		repository.NewGenerationRepository(),
		registry,
		registry.Titles(),
		catalog,
		notifier,
		services.ChatConfig{
			GenerationTimeout: cfg.GenerationTimeout,
			TitleTimeout:      cfg.TitleTimeout,
			FallbackOrder:     lo.Ternary(len(cfg.FallbackOrder) > 0, cfg.FallbackOrder, fallback.DefaultOrder),
			RequireBalance:    cfg.RequireBalance,
		},
	)

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst, 10*time.Minute)

	router := api.NewRouter(api.Handlers{
		Chat:     chatService,
		Chats:    chatService,
		Images:   services.NewImageService(registry, promptRepository),
		Accounts: services.NewAuthService(userRepository, authenticator, cfg.SignupBalance),
		Billing:  services.NewBillingService(userRepository, paymentRepository, checkout, tokenPacks(payments.DefaultPacks, cfg.StripePriceIDs)),
		Personas: catalog,
		Registry: registry,
		Auth:     authenticator,
		Limiter:  limiter,
	})

	return workers.Group{
		workers.NewHTTPServer(cfg.HTTPAddr, router, cfg.ShutdownTimeout),
		workers.NewJanitor("rate_limiter_janitor", limiter, time.Minute),
	}, nil
}

func providerConfig(cfg Config, hc *http.Client) provider.Config {
	return provider.Config{
		HTTPClient: hc,
		OpenAI:     provider.VendorConfig{APIKey: cfg.OpenAIToken, BaseURL: cfg.OpenAIBaseURL, DefaultModel: cfg.OpenAIModel},
		Claude:     provider.VendorConfig{APIKey: cfg.ClaudeToken, BaseURL: cfg.ClaudeBaseURL, DefaultModel: cfg.ClaudeModel},
		Perplexity: provider.VendorConfig{APIKey: cfg.PerplexityToken, BaseURL: cfg.PerplexityBaseURL, DefaultModel: cfg.PerplexityModel},
		Gemini:     provider.VendorConfig{APIKey: cfg.GeminiToken, BaseURL: cfg.GeminiBaseURL, DefaultModel: cfg.GeminiModel},
		X:          provider.VendorConfig{APIKey: cfg.XToken, BaseURL: cfg.XBaseURL, DefaultModel: cfg.XModel},
	}
}

func newNotifier(cfg Config, hc *http.Client) (services.Notifier, error) {
	if cfg.TelegramBotToken == "" || len(cfg.TelegramAlertChatIDs) == 0 {
		slog.Info("operator alerts disabled")
		return notify.Nop(), nil
	}

	n, err := notify.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramAlertChatIDs, cfg.TelegramAlertCooldown, "", hc)
	if err != nil {
		return nil, fmt.Errorf("creating telegram notifier: %w", err)
	}
	return n, nil
}

func newCheckout(cfg Config) (services.CheckoutProvider, error) {
	if cfg.StripeSecretKey == "" {
		slog.Info("payments disabled")
		return payments.Disabled(), nil
	}

	c, err := payments.NewStripeClient(payments.Config{
		APIKey:        cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookSecret,
		SuccessURL:    cfg.StripeSuccessURL,
		CancelURL:     cfg.StripeCancelURL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating stripe client: %w", err)
	}
	return c, nil
}

// tokenPacks attaches configured Stripe price ids to the packs of the same name.
func tokenPacks(packs []domain.TokenPack, priceIDs map[string]string) []domain.TokenPack {
	return lo.Map(packs, func(p domain.TokenPack, _ int) domain.TokenPack {
		if id, ok := priceIDs[strings.ToLower(p.Name)]; ok {
			p.StripePrice = id
		}
		return p
	})
}
