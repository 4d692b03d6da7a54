package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	_ "github.com/tbourn/go-realty-backend/docs" // swagger spec
	"github.com/tbourn/go-realty-backend/internal/config"
	"github.com/tbourn/go-realty-backend/internal/events"
	httpapi "github.com/tbourn/go-realty-backend/internal/http"
	"github.com/tbourn/go-realty-backend/internal/observability"
	"github.com/tbourn/go-realty-backend/internal/push"
	"github.com/tbourn/go-realty-backend/internal/repo"
	"github.com/tbourn/go-realty-backend/internal/services"
	"github.com/tbourn/go-realty-backend/internal/sysutil"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the notification workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, migrate)
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", sysutil.IsTruthy(os.Getenv("AUTO_MIGRATE")),
		"apply schema migrations before serving (AUTO_MIGRATE)")
	return cmd
}

// eventBus is the running event transport and how to stop it.
type eventBus struct {
	events.Publisher
	close func(context.Context) error
}

func runServe(ctx context.Context, migrate bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	gin.SetMode(cfg.GinMode)

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, Version)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer closeDB(db)
	if err := observability.InstrumentDB(db); err != nil {
		log.Warn().Err(err).Msg("gorm tracing plugin not installed")
	}
	if migrate {
		if err := repo.AutoMigrate(db); err != nil {
			return err
		}
	}

	provider, err := pushProvider(ctx, cfg.Notify)
	if err != nil {
		return err
	}
	notes := services.NewNotificationService(db, provider)
	notes.InsertBatch = cfg.Notify.InsertBatch
	notes.PushBatch = cfg.Notify.PushBatchSize

	drops := services.NewPriceDropNotifier(db, notes)
	drops.Threshold = cfg.Deals.PriceDropThreshold
	drops.Cooldown = cfg.Deals.PriceDropCooldown

	bus, err := startEvents(ctx, cfg.Events, &services.EventHandler{Notifications: notes, PriceDrops: drops})
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := bus.close(sctx); err != nil {
			log.Warn().Err(err).Msg("event transport shutdown")
		}
	}()

	props := services.NewPropertyService(db, bus)
	props.DefaultRate = cfg.Deals.DefaultCommissionRate

	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Services{
		Properties:    props,
		Favorites:     &services.FavoriteService{DB: db},
		Notifications: notes,
	}, pingDB(db), cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", Version).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(sctx)
}

// pushProvider returns FCM when credentials are configured, else a provider
// that only logs.
func pushProvider(ctx context.Context, cfg config.NotifyConfig) (push.Provider, error) {
	if cfg.FCMCredentialsFile == "" {
		log.Warn().Msg("FCM_CREDENTIALS_FILE not set; push notifications are logged only")
		return push.LogProvider{}, nil
	}
	return push.NewFCM(ctx, cfg.FCMCredentialsFile)
}

// startEvents runs RabbitMQ when AMQP_URL is set, else the in-process queue.
func startEvents(ctx context.Context, cfg config.EventsConfig, h events.Handler) (*eventBus, error) {
	if cfg.AMQPURL == "" {
		q := events.NewQueue(cfg.QueueSize, cfg.Workers, h, 0)
		q.Start(ctx)
		return &eventBus{Publisher: q, close: q.Close}, nil
	}

	amqpCfg := events.AMQPConfig{
		URL:      cfg.AMQPURL,
		Exchange: cfg.AMQPExchange,
		Queue:    cfg.AMQPQueue,
		Prefetch: cfg.Workers,
	}
	pub, err := events.DialPublisher(amqpCfg)
	if err != nil {
		return nil, err
	}
	consumer, err := events.DialConsumer(amqpCfg, h)
	if err != nil {
		_ = pub.Close()
		return nil, err
	}
	cctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := consumer.Run(cctx); err != nil {
			log.Error().Err(err).Msg("event consumer stopped")
		}
	}()

	return &eventBus{Publisher: pub, close: func(ctx context.Context) error {
		cancel()
		select {
		case <-done:
		case <-ctx.Done():
		}
		return errors.Join(consumer.Close(), pub.Close())
	}}, nil
}

// pingDB backs /health.
func pingDB(db *gorm.DB) httpapi.HealthFunc {
	return func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return sqlDB.PingContext(ctx)
	}
}
