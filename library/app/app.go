package app

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Astemirdum/library-management/library/config"
	"github.com/Astemirdum/library-management/library/internal/handler"
	"github.com/Astemirdum/library-management/library/internal/job"
	"github.com/Astemirdum/library-management/library/internal/model"
	"github.com/Astemirdum/library-management/library/internal/repository"
	"github.com/Astemirdum/library-management/library/internal/repository/memory"
	"github.com/Astemirdum/library-management/library/internal/server"
	"github.com/Astemirdum/library-management/library/internal/service"
	"github.com/Astemirdum/library-management/library/migrations"
	"github.com/Astemirdum/library-management/pkg/auth"
	"github.com/Astemirdum/library-management/pkg/kafka"
	"github.com/Astemirdum/library-management/pkg/logger"
	"github.com/Astemirdum/library-management/pkg/postgres"
	"github.com/Astemirdum/library-management/pkg/validate"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func Run(cfg *config.Config) {
	log := logger.NewLogger(cfg.Log, "library")
	c, err := build(context.Background(), cfg, log)
	if err != nil {
		log.Fatal("build", zap.Error(err))
	}
	defer c.Close()

	h := handler.New(handler.Services{
		Books:   c.svc,
		Lending: c.svc,
		Auth:    c.svc,
		Sweeper: c.sweeper,
	}, c.tokens, log)
	srv := server.NewServer(cfg.Server, h.NewRouter())
	log.Info("http server start ON: ",
		zap.String("addr",
			net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Run)
	if cfg.Sweep.Enabled {
		g.Go(func() error { return c.sweeper.Start(gctx) })
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	select {
	case termSig := <-sig:
		log.Debug("Graceful shutdown", zap.Any("signal", termSig))
	case <-gctx.Done():
		log.Error("background task failed, shutting down")
	}
	cancel()

	closeCtx, closeCancel := context.WithTimeout(context.Background(), time.Second*5)
	defer closeCancel()

	if err = srv.Stop(closeCtx); err != nil {
		log.DPanic("srv.Stop", zap.Error(err))
	}
	if err = g.Wait(); err != nil {
		log.Error("shutdown", zap.Error(err))
	}
	log.Info("Graceful shutdown finished")
}

// Migrate applies the schema migrations and exits.
func Migrate(ctx context.Context, cfg *config.Config) error {
	db, err := postgres.NewPostgresDB(ctx, &cfg.Database, nil)
	if err != nil {
		return err
	}
	defer db.Close()
	return postgres.Migrate(ctx, db, migrations.MigrationFiles)
}

// Sweep runs one guarded expiration sweep and returns the expired count.
func Sweep(ctx context.Context, cfg *config.Config, log *zap.Logger) (int, error) {
	c, err := build(ctx, cfg, log)
	if err != nil {
		return 0, err
	}
	defer c.Close()
	return c.sweeper.Run(ctx)
}

// MarkOverdue flags open loans past their due date and returns how many changed.
func MarkOverdue(ctx context.Context, cfg *config.Config, log *zap.Logger) (int, error) {
	c, err := build(ctx, cfg, log)
	if err != nil {
		return 0, err
	}
	defer c.Close()
	return c.svc.MarkOverdueLoans(ctx)
}

// CreateAdmin registers an admin account directly, bypassing the HTTP role check.
// It returns the new user id.
func CreateAdmin(ctx context.Context, cfg *config.Config, log *zap.Logger, email, password, name string) (string, error) {
	req := model.RegisterRequest{Email: email, Password: password, Name: name, Role: model.RoleAdmin}
	if err := validate.NewCustomValidator().Validate(req); err != nil {
		return "", err
	}
	c, err := build(ctx, cfg, log)
	if err != nil {
		return "", err
	}
	defer c.Close()
	resp, err := c.svc.RegisterUser(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.User.ID.String(), nil
}

type container struct {
	svc     *service.Service
	sweeper *job.Expiration
	tokens  *auth.Tokens
	closers []func()
}

func build(ctx context.Context, cfg *config.Config, log *zap.Logger) (*container, error) {
	c := &container{
		tokens: auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
	}
	var (
		repo    repository.Repository
		jobOpts = []job.Option{job.WithInterval(cfg.Sweep.Interval)}
	)
	switch cfg.Storage.Driver {
	case config.StorageMemory:
		log.Warn("in-memory storage, data is lost on restart")
		repo = memory.New()
	default:
		db, err := postgres.NewPostgresDB(ctx, &cfg.Database, migrations.MigrationFiles)
		if err != nil {
			return nil, errors.Wrap(err, "db init")
		}
		c.closers = append(c.closers, db.Close)
		pgRepo, err := repository.NewRepository(db, log)
		if err != nil {
			c.Close()
			return nil, errors.Wrap(err, "repo")
		}
		repo = pgRepo
		jobOpts = append(jobOpts, job.WithLocker(repository.NewAdvisoryLocker(db, log), cfg.Sweep.LockKey))
	}

	svcOpts := []service.Option{
		service.WithTokenIssuer(c.tokens),
		service.WithBcryptCost(cfg.Auth.BcryptCost),
	}
	if cfg.Kafka.Enabled() {
		producer, err := kafka.NewProducer(cfg.Kafka)
		if err != nil {
			c.Close()
			return nil, errors.Wrap(err, "kafka.NewProducer")
		}
		pub := kafka.NewPublisher(producer, cfg.Kafka.Topic, log)
		c.closers = append(c.closers, func() {
			if err := pub.Close(); err != nil {
				log.Error("kafka close", zap.Error(err))
			}
		})
		svcOpts = append(svcOpts, service.WithPublisher(pub))
	}

	c.svc = service.NewService(repo, log, svcOpts...)
	c.sweeper = job.NewExpiration(c.svc, log, jobOpts...)
	return c, nil
}

// Close releases resources in reverse order of acquisition.
func (c *container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}
