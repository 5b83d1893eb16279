// README: Entry point; loads config, migrates the schema, wires services and serves the HTTP API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"fulfil/internal/config"
	httptransport "fulfil/internal/http"
	"fulfil/internal/infra"
	"fulfil/internal/maps"
	"fulfil/internal/modules/assignment"
	"fulfil/internal/modules/delivery"
	"fulfil/internal/modules/location"
	"fulfil/internal/modules/order"
	"fulfil/internal/modules/pricing"
	"fulfil/internal/modules/staff"
	"fulfil/internal/modules/voucher"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger, err := infra.NewLogger(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("fulfil-api stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Firebase.ProjectID == "" {
		return errors.New("FULFIL_FIREBASE_PROJECT_ID is required")
	}
	verifier, err := infra.NewFirebaseVerifier(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	if err != nil {
		return err
	}

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		return err
	}
	defer dbPool.Close()
	if err := infra.Migrate(ctx, dbPool); err != nil {
		return err
	}

	redisClient := infra.NewRedis(cfg.Redis.Addr)
	defer func() { _ = redisClient.Close() }()

	var publisher order.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafka, err := infra.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		if err != nil {
			return err
		}
		defer func() { _ = kafka.Close() }()
		publisher = kafka
	} else {
		logger.Warn("no kafka brokers configured; state events are stored but not published")
	}

	geocoder, err := newGeocoder(cfg.Geocoder)
	if err != nil {
		return err
	}

	pricingSvc, err := pricing.NewService(cfg.Pricing)
	if err != nil {
		return err
	}
	voucherSvc := voucher.NewService(voucher.NewStore(dbPool), logger.Named("voucher"))
	assignmentSvc := assignment.NewService(
		assignment.NewStore(dbPool),
		geocoder,
		assignment.NewRedisLocker(redisClient, cfg.Assignment.LockTTL),
		cfg.Assignment,
		logger.Named("assignment"),
	)
	orderSvc := order.NewService(order.Deps{
		Store:     order.NewStore(dbPool),
		Pricing:   pricingSvc,
		Vouchers:  voucherSvc,
		Assigner:  assignmentSvc,
		Publisher: publisher,
		Logger:    logger.Named("order"),
	})
	deliverySvc := delivery.NewService(delivery.NewStore(dbPool), orderSvc, publisher, cfg.Delivery.ETADays, logger.Named("delivery"))

	mailbox, err := newMailbox(ctx, cfg.Workspace)
	if err != nil {
		return err
	}
	staffSvc := staff.NewService(staff.NewStore(dbPool), mailbox, logger.Named("staff"))

	router := httptransport.NewRouter(httptransport.Services{
		Orders:     orderSvc,
		Assignment: assignmentSvc,
		Deliveries: deliverySvc,
		Vouchers:   voucherSvc,
		Staff:      staffSvc,
	}, verifier, logger.Named("http"))

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTP.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newGeocoder(cfg config.GeocoderConfig) (location.Geocoder, error) {
	switch cfg.Provider {
	case "google":
		return maps.NewClient(cfg.GoogleMapsKey, cfg.Timeout)
	case "onemap", "":
		return location.NewOneMapClient(cfg.OneMapBaseURL, cfg.OneMapToken, cfg.Timeout), nil
	default:
		return nil, errors.New("unknown geocoder provider " + cfg.Provider)
	}
}

func newMailbox(ctx context.Context, cfg config.WorkspaceConfig) (staff.MailboxProvisioner, error) {
	if cfg.CredentialsFile == "" {
		return staff.LocalProvisioner{Domain: cfg.Domain}, nil
	}
	return staff.NewWorkspaceProvisioner(ctx, cfg.CredentialsFile, cfg.AdminSubject, cfg.Domain)
}
