package app

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hidayathullahs/ParkEase-Smart-Parking-Spot-Finder-sub000/config"
	"github.com/hidayathullahs/ParkEase-Smart-Parking-Spot-Finder-sub000/internal/catalog"
	"github.com/hidayathullahs/ParkEase-Smart-Parking-Spot-Finder-sub000/internal/handler"
	"github.com/hidayathullahs/ParkEase-Smart-Parking-Spot-Finder-sub000/internal/notify"
	"github.com/hidayathullahs/ParkEase-Smart-Parking-Spot-Finder-sub000/internal/repository"
	"github.com/hidayathullahs/ParkEase-Smart-Parking-Spot-Finder-sub000/internal/server"
	"github.com/hidayathullahs/ParkEase-Smart-Parking-Spot-Finder-sub000/internal/service"
	"github.com/hidayathullahs/ParkEase-Smart-Parking-Spot-Finder-sub000/migrations"
	"github.com/hidayathullahs/ParkEase-Smart-Parking-Spot-Finder-sub000/pkg/kafka"
	"github.com/hidayathullahs/ParkEase-Smart-Parking-Spot-Finder-sub000/pkg/logger"
	"github.com/hidayathullahs/ParkEase-Smart-Parking-Spot-Finder-sub000/pkg/postgres"
)

func Run(cfg *config.Config) error {
	log := logger.NewLogger(cfg.Log, "parking")
	db, err := postgres.NewPostgresDB(context.Background(), &cfg.Database, migrations.MigrationFiles)
	if err != nil {
		return fmt.Errorf("db init %w", err)
	}
	repo, err := repository.NewRepository(db, log)
	if err != nil {
		return fmt.Errorf("repo init %w", err)
	}

	producer, err := kafka.NewProducer(cfg.Kafka)
	if err != nil {
		return fmt.Errorf("kafka.NewProducer %w", err)
	}
	emitter := notify.NewEmitter(producer, log)

	catalogClient := catalog.NewClient(log, cfg.Catalog)
	svc := service.NewService(repo, catalogClient, log)
	sweeper := service.NewSweeper(repo, emitter, cfg.Sweep.Interval, cfg.Sweep.LeadDurations(), log)

	h := handler.New(svc, log)
	srv := server.NewServer(cfg.Server, h.NewRouter())
	log.Info("http server start ON: ",
		zap.String("addr",
			net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)))

	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run()
	})
	g.Go(func() error {
		return sweeper.Run(ctx)
	})

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	termSig := <-sig

	log.Debug("Graceful shutdown", zap.Any("signal", termSig))
	cancel()

	closeCtx, closeCancel := context.WithTimeout(context.Background(), time.Second*5)
	defer closeCancel()

	if err = srv.Stop(closeCtx); err != nil {
		log.Error("srv.Stop", zap.Error(err))
	}
	if err = g.Wait(); err != nil &&
		!errors.Is(err, context.Canceled) && !errors.Is(err, http.ErrServerClosed) {
		log.Error("run group", zap.Error(err))
	}
	if err = producer.Close(); err != nil {
		log.Error("producer.Close", zap.Error(err))
	}
	db.Close()
	log.Info("Graceful shutdown finished")
	return nil
}
