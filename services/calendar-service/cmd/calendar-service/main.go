package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/md-rashed-zaman/deltacal/libs/config"
	"github.com/md-rashed-zaman/deltacal/libs/db"
	"github.com/md-rashed-zaman/deltacal/libs/httpx"
	"github.com/md-rashed-zaman/deltacal/libs/kafkax"
	otelx "github.com/md-rashed-zaman/deltacal/libs/otel"
	"github.com/md-rashed-zaman/deltacal/libs/runtime"
	"github.com/md-rashed-zaman/deltacal/services/calendar-service/internal/consumer"
	"github.com/md-rashed-zaman/deltacal/services/calendar-service/internal/handlers"
	"github.com/md-rashed-zaman/deltacal/services/calendar-service/internal/inbox"
	"github.com/md-rashed-zaman/deltacal/services/calendar-service/internal/outbox"
	"github.com/md-rashed-zaman/deltacal/services/calendar-service/internal/presets"
	"github.com/md-rashed-zaman/deltacal/services/calendar-service/internal/sessions"
	"github.com/md-rashed-zaman/deltacal/services/calendar-service/internal/storage"
)

func main() {
	service := config.String("SERVICE_NAME", "calendar-service")
	logger := runtime.NewLogger(service)
	if err := run(service, logger); err != nil {
		logger.Error("calendar service failed", "err", err)
		os.Exit(1)
	}
}

func run(service string, logger *slog.Logger) error {
	port, err := config.Port("PORT", "8090")
	if err != nil {
		return err
	}

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	registry, err := presets.Load(config.String("CALENDAR_PRESETS_FILE", ""), time.Now())
	if err != nil {
		return err
	}
	logger.Info("presets loaded", "presets", registry.Names())

	var (
		checks   []runtime.ReadyCheck
		recorder sessions.Recorder
		picks    handlers.PickLister
	)
	brokers := kafkax.SplitBrokers(config.String("KAFKA_BROKERS", ""))

	// Without a database the service still serves pickers; picks are only
	// logged and business-hours events are not consumed.
	if dbURL := config.String("DATABASE_URL", ""); dbURL != "" {
		poolCfg := db.DefaultPoolConfig()
		maxConns, err := config.PositiveInt("DB_MAX_CONNS", int(poolCfg.MaxConns))
		if err != nil {
			return err
		}
		poolCfg.MaxConns = int32(maxConns)

		pool, err := db.Open(ctx, dbURL, poolCfg)
		if err != nil {
			logger.Error("db connection failed", "err", err)
			return err
		}
		defer pool.Close()
		checks = append(checks, runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)})

		outboxRepo := outbox.NewRepository()
		pickRepo := storage.NewPickRepository(pool, outboxRepo)
		recorder, picks = pickRepo, pickRepo

		pollEvery, err := config.Duration("OUTBOX_POLL_EVERY", 2*time.Second)
		if err != nil {
			return err
		}
		publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
			Brokers:   brokers,
			PollEvery: pollEvery,
			BatchSize: 50,
		})
		go publisher.Run(ctx)

		hoursConsumer := consumer.New(logger, inbox.NewRepository(pool), consumer.Config{
			Brokers: brokers,
			GroupID: config.String("KAFKA_GROUP_ID", service),
			Topic:   config.String("KAFKA_CONSUME_TOPIC", consumer.TopicHoursUpdated),
		}, consumer.HoursHandler(registry, logger))
		go hoursConsumer.Run(ctx)
	} else {
		logger.Warn("DATABASE_URL not set; picks will not be persisted")
	}
	if len(brokers) > 0 {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}

	idleTTL, err := config.Duration("PICKER_IDLE_TTL", 30*time.Minute)
	if err != nil {
		return err
	}
	maxSessions, err := config.PositiveInt("PICKER_MAX_SESSIONS", 10000)
	if err != nil {
		return err
	}
	manager := sessions.NewManager(logger, recorder, sessions.Config{
		IdleTTL:     idleTTL,
		SweepEvery:  time.Minute,
		MaxSessions: maxSessions,
	})
	managerDone := make(chan struct{})
	go func() {
		manager.Run(ctx)
		close(managerDone)
	}()

	limiter, err := rateLimiter(logger, &checks)
	if err != nil {
		return err
	}
	failOpen, err := config.Bool("RATE_LIMIT_FAIL_OPEN", true)
	if err != nil {
		return err
	}
	bodyLimit, err := config.PositiveInt("HTTP_BODY_LIMIT_BYTES", 64<<10)
	if err != nil {
		return err
	}
	requestTimeout, err := config.Duration("HTTP_REQUEST_TIMEOUT", 10*time.Second)
	if err != nil {
		return err
	}

	mux := runtime.NewBaseMuxWithReady(checks...)
	handlers.NewPickerHandler(manager, registry, picks, logger).Register(mux)

	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: config.List("CORS_ALLOWED_ORIGINS"),
			MaxAge:         10 * time.Minute,
		}),
		httpx.RateLimit(limiter, logger, failOpen),
		httpx.WithBodyLimit(int64(bodyLimit)),
		httpx.WithTimeout(requestTimeout),
	)
	handler = otelhttp.NewHandler(handler, "calendar")

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	err = runtime.Serve(ctx, srv, logger, 10*time.Second)
	stop()
	<-managerDone
	logger.Info("http server stopped")
	return err
}

// rateLimiter uses Redis when REDIS_ADDR is set so that every instance shares
// one budget per client, and an in-process limiter otherwise.
func rateLimiter(logger *slog.Logger, checks *[]runtime.ReadyCheck) (httpx.Limiter, error) {
	perMinute, err := config.PositiveInt("RATE_LIMIT_PER_MINUTE", 600)
	if err != nil {
		return nil, err
	}

	addr := config.String("REDIS_ADDR", "")
	if addr == "" {
		logger.Info("rate limiting enabled (memory)", "per_minute", perMinute)
		return httpx.NewRateLimiter(perMinute, time.Minute), nil
	}

	redisDB, err := config.Int("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: config.String("REDIS_PASSWORD", ""),
		DB:       redisDB,
	})
	*checks = append(*checks, runtime.ReadyCheck{Name: "redis", Check: httpx.RedisReadyCheck(rdb)})
	logger.Info("rate limiting enabled (redis)", "per_minute", perMinute, "redis_addr", addr)
	return httpx.NewRedisRateLimiter(rdb, perMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "calendar:rl")), nil
}
