// Package server wires the CampusVault components together and runs the
// HTTP API, the gRPC health endpoint and the background jobs until the
// process is asked to stop.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/campusvault/internal/logging"
	"github.com/dmitrijs2005/campusvault/internal/server/blob"
	"github.com/dmitrijs2005/campusvault/internal/server/config"
	"github.com/dmitrijs2005/campusvault/internal/server/finance"
	"github.com/dmitrijs2005/campusvault/internal/server/gateway"
	"github.com/dmitrijs2005/campusvault/internal/server/httpapi"
	"github.com/dmitrijs2005/campusvault/internal/server/jobs"
	"github.com/dmitrijs2005/campusvault/internal/server/ledger"
	"github.com/dmitrijs2005/campusvault/internal/server/notify"
	"github.com/dmitrijs2005/campusvault/internal/server/quota"
	"github.com/dmitrijs2005/campusvault/internal/server/repositories/memory"
	"github.com/dmitrijs2005/campusvault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/campusvault/internal/server/services"
	"github.com/dmitrijs2005/campusvault/internal/server/uow"
	"github.com/gin-gonic/gin"

	gs "github.com/dmitrijs2005/campusvault/internal/server/grpc"
)

// MemoryDSN selects the in-process store instead of PostgreSQL.
const MemoryDSN = "memory://"

type App struct {
	config     *config.Config
	logger     logging.Logger
	db         *sql.DB
	dispatcher *notify.Dispatcher
	scheduler  *jobs.Scheduler
	http       *httpapi.Server
	health     *gs.HealthServer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, err := logging.New(c.LogBackend, c.LogLevel, os.Stdout)
	if err != nil {
		return nil, err
	}
	app := &App{config: c, logger: logger}

	tx, err := app.initStore(ctx)
	if err != nil {
		return nil, err
	}
	blobs, err := app.initBlobs(ctx)
	if err != nil {
		app.close()
		return nil, err
	}
	tracker, err := initQuota(c)
	if err != nil {
		app.close()
		return nil, err
	}

	// MailNotifier resolves addresses through the user service, which in
	// turn needs the notifier; the lookup closes over the later value.
	var users *services.UserService
	var next notify.Notifier = notify.NewLogNotifier(logger)
	if c.SMTPHost != "" {
		next = notify.NewMailNotifier(notify.MailConfig{
			Host:     c.SMTPHost,
			Port:     c.SMTPPort,
			Username: c.SMTPUsername,
			Password: c.SMTPPassword,
			From:     c.SMTPFrom,
		}, func(ctx context.Context, userID string) (string, error) { return users.Email(ctx, userID) })
	}
	app.dispatcher = notify.NewDispatcher(next, c.NotifyWorkers, c.NotifyQueueSize, c.NotifyTimeout, logger.With("module", "notify"))

	now := func() time.Time { return time.Now().UTC() }
	deps := services.Deps{
		Tx:          tx,
		Ledger:      ledger.NewWithClock(now),
		Quota:       tracker,
		Finance:     finance.NewAggregatorWithClock(now),
		Gateway:     initGateway(c),
		Blobs:       blobs,
		Notifier:    app.dispatcher,
		Log:         logger.With("module", "services"),
		Currency:    c.Currency,
		CallbackURL: c.CallbackURL,
		Now:         now,
	}
	users = services.NewUserService(deps, services.UserConfig{
		JWTSecret:                    []byte(c.SecretKey),
		AccessTokenValidityDuration:  c.AccessTokenValidityDuration,
		RefreshTokenValidityDuration: c.RefreshTokenValidityDuration,
		AdminEmail:                   c.AdminEmail,
	})
	svc := httpapi.Services{
		Users:   users,
		Files:   services.NewFileService(deps),
		Storage: services.NewStorageService(deps),
		Wallets: services.NewWalletService(deps),
		Payouts: services.NewPayoutService(deps),
		Finance: services.NewFinanceService(deps),
	}

	app.scheduler = jobs.NewScheduler(logger)
	for _, j := range []jobs.Job{
		jobs.SummaryRefresh(c.SummaryRefreshCron, svc.Finance),
		jobs.Reconcile(c.ReconcileCron, c.ReconcileAfter, c.ReconcileBatch, svc.Wallets, logger),
		jobs.TokenPurge(c.TokenPurgeCron, users, logger),
	} {
		if err := app.scheduler.Add(j); err != nil {
			app.close()
			return nil, err
		}
	}

	gin.SetMode(gin.ReleaseMode)
	router := httpapi.NewRouter(svc, logger, httpapi.Options{MaxUploadBytes: c.MaxUploadBytes})
	app.http = httpapi.NewServer(c.HTTPAddr, router, logger)

	app.health = gs.NewHealthServer(c.GRPCAddr, logger)
	if app.db != nil {
		app.health.AddProbe("database", app.db.PingContext)
	}

	return app, nil
}

func (app *App) initStore(ctx context.Context) (uow.Transactor, error) {
	if app.config.DatabaseDSN == MemoryDSN {
		app.logger.Warn(ctx, "using in-memory store; data is lost on exit")
		return memory.NewStore(), nil
	}

	db, err := repomanager.Open(ctx, app.config.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	manager := repomanager.NewPostgresRepositoryManager()
	if err := manager.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db migrations error: %w", err)
	}
	app.db = db
	// Summary recomputes serialize on a row lock, so read committed is
	// enough for the cash-flow units of work.
	return uow.NewSQLTransactor(db, manager, app.logger.With("module", "uow"),
		uow.WithMaxAttempts(app.config.UOWMaxAttempts),
		uow.WithTxOptions(&sql.TxOptions{Isolation: sql.LevelReadCommitted}),
	), nil
}

func (app *App) initBlobs(ctx context.Context) (blob.Store, error) {
	c := app.config
	if c.BlobBackend == config.BlobMemory {
		return blob.NewMemoryStore(), nil
	}
	s, err := blob.NewS3Store(ctx, blob.S3Config{
		Region:       c.S3Region,
		AccessKey:    c.S3AccessKey,
		SecretKey:    c.S3SecretKey,
		BaseEndpoint: c.S3BaseEndpoint,
		Bucket:       c.S3Bucket,
		PresignTTL:   c.S3PresignTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("blob store init error: %w", err)
	}
	return s, nil
}

func initQuota(c *config.Config) (*quota.Tracker, error) {
	upload, err := quota.NewPolicy(c.QuotaUploadPolicy, c.QuotaLowRemaining, c.QuotaLowRatio)
	if err != nil {
		return nil, err
	}
	purchase, err := quota.NewPolicy(c.QuotaPurchasePolicy, c.QuotaLowRemaining, c.QuotaLowRatio)
	if err != nil {
		return nil, err
	}
	return quota.NewTracker(upload, purchase), nil
}

func initGateway(c *config.Config) gateway.Gateway {
	if c.GatewayProvider == config.GatewayRazorpay {
		return gateway.NewRazorpay(gateway.RazorpayConfig{
			KeyID:         c.RazorpayKeyID,
			KeySecret:     c.RazorpayKeySecret,
			WebhookSecret: c.RazorpayWebhookSecret,
			Timeout:       c.GatewayTimeout,
		})
	}
	f := gateway.NewFake(c.RazorpayWebhookSecret)
	f.Timeout = c.GatewayTimeout
	return f
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves until ctx is cancelled, a signal arrives or a server fails,
// then stops everything in reverse order.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	serve := func(name string, run func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := run(ctx); err != nil {
				app.logger.Error(ctx, name+" failed", "error", err)
				errs <- fmt.Errorf("%s: %w", name, err)
				cancelFunc()
			}
		}()
	}
	serve("http server", app.http.Run)
	serve("grpc server", app.health.Run)
	app.scheduler.Start()

	wg.Wait()

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	app.scheduler.Stop(stopCtx)
	if err := app.dispatcher.Close(stopCtx); err != nil {
		app.logger.Warn(stopCtx, "notifications not drained", "error", err)
	}
	app.close()
	app.logger.Info(stopCtx, "App stopped")

	close(errs)
	var all []error
	for err := range errs {
		all = append(all, err)
	}
	return errors.Join(all...)
}

func (app *App) close() {
	if app.db != nil {
		_ = app.db.Close()
	}
}
