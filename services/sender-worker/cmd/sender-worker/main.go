package main

import (
	"context"
	"database/sql"
	"errors"
	"os/signal"
	"syscall"

	"github.com/Mutter0815/CampaignDispatch/internal/dispatch"
	"github.com/Mutter0815/CampaignDispatch/internal/store"
	"github.com/Mutter0815/CampaignDispatch/internal/transport/email"
	"github.com/Mutter0815/CampaignDispatch/pkg/config"
	"github.com/Mutter0815/CampaignDispatch/pkg/db"
	"github.com/Mutter0815/CampaignDispatch/pkg/logx"
	"github.com/Mutter0815/CampaignDispatch/pkg/rmq"
	"github.com/Mutter0815/CampaignDispatch/services/sender-worker/worker"
)

func main() {
	logx.Init("sender-worker")
	defer logx.Sync()

	config.MustLoadWorker()
	cfg := config.Worker

	opts := []dispatch.Option{
		dispatch.WithLimiter(dispatch.NewIntervalLimiter(cfg.SendInterval)),
		dispatch.WithWorkers(cfg.Workers),
		dispatch.WithSendTimeout(cfg.SendTimeout),
	}
	if cfg.DBDSN != "" {
		sqlDB, err := db.Open(cfg.DBDSN)
		if err != nil {
			logx.L().Fatalw("db_open_error", "error", err)
		}
		defer closeDB(sqlDB)
		opts = append(opts, dispatch.WithStore(store.New(sqlDB)))
	}

	d := dispatch.New(cfg.TransportConfig(), email.NewResendSender(cfg.ResendAPIKey), opts...)
	if err := d.Ready(); err != nil {
		logx.L().Fatalw("transport_config_error", "error", err)
	}

	cons, err := rmq.NewConsumer(cfg.RMQURL, cfg.Queue)
	if err != nil {
		logx.L().Fatalw("rmq_init_error", "error", err)
	}
	defer cons.Close()

	w := worker.New(d, cons, cfg.DispatchTimeout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logx.L().Fatalw("worker_error", "error", err)
	}
	logx.L().Infow("sender-worker stopped gracefully")
}

func closeDB(sqlDB *sql.DB) {
	if err := sqlDB.Close(); err != nil {
		logx.L().Warnw("db_close_error", "error", err)
	} else {
		logx.L().Infow("db_closed")
	}
}
