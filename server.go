package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	apperrors "github.com/yashrajoria/shopswift-api/common/errors"
	"github.com/yashrajoria/shopswift-api/common/logger"
	commonmw "github.com/yashrajoria/shopswift-api/common/middleware"
	"github.com/yashrajoria/shopswift-api/controllers"
	"github.com/yashrajoria/shopswift-api/database"
	"github.com/yashrajoria/shopswift-api/middleware"
	awspkg "github.com/yashrajoria/shopswift-api/pkg/aws"
	"github.com/yashrajoria/shopswift-api/pkg/tracing"
	"github.com/yashrajoria/shopswift-api/providers"
	"github.com/yashrajoria/shopswift-api/repository"
	"github.com/yashrajoria/shopswift-api/routes"
	"github.com/yashrajoria/shopswift-api/services"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

const serviceName = "shopswift-api"

// newLogger builds the process logger, teeing into CloudWatch Logs when
// enabled. A CloudWatch failure falls back to console-only logging.
func newLogger(ctx context.Context, cfg *Config, awsCfg *sdkaws.Config) (*zap.Logger, error) {
	if cfg.CloudWatchEnabled && awsCfg != nil {
		cw, err := awspkg.NewCloudWatchLogsClient(ctx, *awsCfg, cfg.CloudWatchLogGroup, serviceName)
		if err == nil {
			return logger.InitializeWithWriter(cfg.Env, cw)
		}
		log, initErr := logger.Initialize(cfg.Env)
		if initErr != nil {
			return nil, initErr
		}
		log.Warn("CloudWatch Logs unavailable, logging to console only", zap.Error(err))
		return log, nil
	}
	return logger.Initialize(cfg.Env)
}

// loadAWS returns nil when no AWS-backed feature is configured.
func loadAWS(ctx context.Context, cfg *Config) (*sdkaws.Config, error) {
	if !cfg.CloudWatchEnabled && cfg.SNSTopicArn == "" {
		return nil, nil
	}
	awsCfg, err := awspkg.LoadAWSConfig(ctx)
	if err != nil {
		return nil, err
	}
	return &awsCfg, nil
}

func newTokenStore(ctx context.Context, cfg *Config, log *zap.Logger) (services.TokenStore, *redis.Client) {
	if cfg.RedisURL == "" {
		log.Info("REDIS_URL not set, using in-memory token store")
		return services.NewMemoryTokenStore(), nil
	}
	client, err := database.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Warn("Redis unavailable, using in-memory token store", zap.Error(err))
		return services.NewMemoryTokenStore(), nil
	}
	return services.NewRedisTokenStore(client, "shopswift:"), client
}

type server struct {
	cfg         *Config
	log         *zap.Logger
	db          *gorm.DB
	redis       *redis.Client
	router      *gin.Engine
	authLimiter *commonmw.RateLimiter
	stopTracing func(context.Context) error
}

func newServer(ctx context.Context, cfg *Config, log *zap.Logger, awsCfg *sdkaws.Config) (*server, error) {
	stopTracing, err := tracing.Init(ctx, tracing.Config{
		ServiceName: serviceName,
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    cfg.OTLPInsecure,
	})
	if err != nil {
		return nil, err
	}

	db, err := database.Connect(ctx, database.PostgresConfig{
		Host:     cfg.PostgresHost,
		Port:     cfg.PostgresPort,
		User:     cfg.PostgresUser,
		Password: cfg.PostgresPassword,
		DBName:   cfg.PostgresDB,
		SSLMode:  cfg.PostgresSSLMode,
		TimeZone: cfg.PostgresTimeZone,
	}, log)
	if err != nil {
		_ = stopTracing(ctx)
		return nil, err
	}
	if cfg.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			_ = database.Close(db)
			_ = stopTracing(ctx)
			return nil, err
		}
	}

	var (
		publisher awspkg.SNSPublisher
		metrics   *awspkg.MetricsClient
	)
	if awsCfg != nil {
		if cfg.SNSTopicArn != "" {
			publisher = awspkg.NewSNSClient(*awsCfg)
		}
		metrics = awspkg.NewMetricsClient(*awsCfg, cfg.MetricsNamespace, cfg.CloudWatchEnabled)
	} else {
		metrics = awspkg.NewMetricsClient(sdkaws.Config{}, cfg.MetricsNamespace, false)
	}

	tokenStore, redisClient := newTokenStore(ctx, cfg, log)

	rateSource := providers.NewExchangeRateAPI(cfg.ExchangeRateURL, cfg.ExchangeRateAPIKey, cfg.ProviderTimeout)
	razorpay := providers.NewRazorpayClient(cfg.RazorpayURL, cfg.RazorpayKeyID, cfg.RazorpayKeySecret, cfg.RazorpayWebhookSecret, cfg.ProviderTimeout)
	polar := providers.NewPolarClient(cfg.PolarURL, cfg.PolarAccessToken, cfg.PolarProductID, cfg.PolarSuccessURL, cfg.PolarWebhookSecret, cfg.ProviderTimeout)

	store := repository.NewGormStore(db)
	users := repository.NewGormUserRepository(db)
	tokens := services.NewTokenService(cfg.JWTSecret, cfg.AccessTokenTTL)

	currencySvc := services.NewCurrencyService(rateSource, cfg.ExchangeRateTTL, metrics, log)
	productSvc := services.NewProductService(store, currencySvc, metrics, log)
	orderSvc := services.NewOrderService(store, currencySvc, publisher, cfg.SNSTopicArn, metrics, log)
	paymentSvc := services.NewPaymentService(
		repository.NewGormOrderRepository(db),
		repository.NewGormPaymentRepository(db),
		users,
		[]providers.PaymentProvider{razorpay, polar},
		razorpay,
		publisher,
		cfg.SNSTopicArn,
		metrics,
		log,
	)
	authSvc := services.NewAuthService(users, tokens, tokenStore, cfg.AdminEmails, !cfg.IsProduction(), log)
	addressSvc := services.NewAddressService(store)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.RequestID())
	r.Use(otelgin.Middleware(serviceName))
	r.Use(commonmw.RequestLogger(log))
	r.Use(commonmw.CORSMiddleware(cfg.CORSOrigins))
	r.Use(commonmw.SecurityHeaders())
	r.Use(commonmw.MetricsMiddleware(metrics, serviceName))
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(apperrors.ErrorMiddleware(log))

	authLimiter := commonmw.NewRateLimiter(rate.Every(time.Minute/10), 5, 10*time.Minute)
	routes.RegisterRoutes(r, routes.Controllers{
		Product:  controllers.NewProductController(productSvc),
		Order:    controllers.NewOrderController(orderSvc),
		Currency: controllers.NewCurrencyController(currencySvc),
		Auth:     controllers.NewAuthController(authSvc),
		Address:  controllers.NewAddressController(addressSvc),
		Payment:  controllers.NewPaymentController(paymentSvc),
	}, tokens, authLimiter)

	return &server{
		cfg:         cfg,
		log:         log,
		db:          db,
		redis:       redisClient,
		router:      r,
		authLimiter: authLimiter,
		stopTracing: stopTracing,
	}, nil
}

// run serves until ctx is cancelled, then drains in-flight requests.
func (s *server) run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.cleanupLimiter(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("ShopSwift API starting", zap.String("port", s.cfg.Port), zap.String("env", s.cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			s.close()
			return err
		}
	case <-ctx.Done():
	}

	s.log.Info("Shutting down ShopSwift API...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.close()
	if err != nil {
		return err
	}
	s.log.Info("ShopSwift API stopped gracefully")
	return nil
}

func (s *server) cleanupLimiter(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.authLimiter.Cleanup()
		}
	}
}

func (s *server) close() {
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.log.Error("Failed to close Redis", zap.Error(err))
		}
	}
	if err := database.Close(s.db); err != nil {
		s.log.Error("Failed to close database", zap.Error(err))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.stopTracing(ctx); err != nil {
		s.log.Error("Failed to flush traces", zap.Error(err))
	}
	_ = s.log.Sync()
}
