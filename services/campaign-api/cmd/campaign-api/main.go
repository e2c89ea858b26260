package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Mutter0815/CampaignDispatch/internal/dispatch"
	"github.com/Mutter0815/CampaignDispatch/internal/store"
	"github.com/Mutter0815/CampaignDispatch/internal/transport/email"
	"github.com/Mutter0815/CampaignDispatch/pkg/config"
	"github.com/Mutter0815/CampaignDispatch/pkg/db"
	"github.com/Mutter0815/CampaignDispatch/pkg/logx"
	"github.com/Mutter0815/CampaignDispatch/pkg/rmq"
	"github.com/Mutter0815/CampaignDispatch/services/campaign-api/server"
)

func main() {
	logx.Init("campaign-api")
	defer logx.Sync()

	config.MustLoadAPI()
	cfg := config.API

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
	} else {
		logx.L().Warnw("tracking_store_disabled", "reason", "DB_DSN not set")
	}

	var pub *rmq.Publisher
	if cfg.RMQURL != "" {
		p, err := rmq.NewPublisher(cfg.RMQURL, cfg.Queue)
		if err != nil {
			logx.L().Fatalw("rmq_init_error", "error", err)
		}
		defer func() {
			if err := p.Close(); err != nil {
				logx.L().Warnw("rmq_publisher_close_error", "error", err)
			} else {
				logx.L().Infow("rmq_publisher_closed")
			}
		}()
		pub = p
	} else {
		logx.L().Warnw("async_dispatch_disabled", "reason", "RMQ_URL not set")
	}

	if cfg.ResendAPIKey == "" {
		logx.L().Warnw("email_transport_unconfigured", "reason", "RESEND_API_KEY not set")
	}
	d := dispatch.New(cfg.TransportConfig(), email.NewResendSender(cfg.ResendAPIKey), opts...)

	h := server.NewHandlers(d, pub, cfg.DispatchTimeout)
	srv := server.NewHTTPServer(":"+cfg.Port, h)

	go func() {
		logx.L().Infow("api_listen_start", "addr", ":"+cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.L().Fatalw("http_server_error", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	logx.L().Infow("signal_received", "signal", sig.String())

	// in-flight dispatches get a chance to finish their current recipients
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logx.L().Errorw("server_shutdown_error", "error", err)
	} else {
		logx.L().Infow("server_shutdown_success")
	}

	logx.L().Infow("campaign-api stopped gracefully")
}

func closeDB(sqlDB *sql.DB) {
	if err := sqlDB.Close(); err != nil {
		logx.L().Warnw("db_close_error", "error", err)
	} else {
		logx.L().Infow("db_closed")
	}
}
