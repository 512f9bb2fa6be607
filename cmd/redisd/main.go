package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/example/redisd/internal/adminhttp"
	"github.com/example/redisd/internal/blocking"
	"github.com/example/redisd/internal/cluster"
	"github.com/example/redisd/internal/config"
	"github.com/example/redisd/internal/dispatch"
	"github.com/example/redisd/internal/metrics"
	"github.com/example/redisd/internal/pubsub"
	"github.com/example/redisd/internal/repl"
	"github.com/example/redisd/internal/server"
	"github.com/example/redisd/internal/store"
)

func main() {
	logConfig := zap.NewDevelopmentConfig()
	logConfig.EncoderConfig.TimeKey = ""
	logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logConfig.DisableStacktrace = true
	log := zap.Must(logConfig.Build())
	defer log.Sync()
	log = log.Named("main")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config load failed", zap.Error(err))
	}

	ks := store.NewKeyspace(cfg.Databases, store.NoopNotifier{})
	cl := cluster.NewState(cfg.Bind, cfg.Port)
	if cfg.ClusterEnabled {
		cl.Enable()
	}
	bc := blocking.NewCoordinator()
	ps := pubsub.NewRegistry()
	ov := config.NewOverlay(cfg)

	var sink repl.Sink = repl.NoopSink{}
	if cfg.ReplicaOf != "" {
		fwd := repl.NewRedisForwarder(cfg.ReplicaOf, log)
		defer fwd.Close()
		sink = fwd
	}

	m := metrics.New()
	d := dispatch.New(ks, cl, bc, ps, sink, cfg, ov, log).WithMetrics(m)
	srv := server.New(cfg, ks, cl, bc, ps, d, log).WithMetrics(m)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.ListenAndServe()
	})

	g.Go(func() error {
		srv.RunExpirationSweep(gctx)
		return nil
	})

	var adminSrv *http.Server
	if cfg.AdminAddr != "" {
		router, err := adminhttp.New(cfg, d, srv, m, log)
		if err != nil {
			log.Fatal("admin HTTP plane setup failed", zap.Error(err))
		}
		adminSrv = &http.Server{
			Addr:         cfg.AdminAddr,
			Handler:      router,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		g.Go(func() error {
			log.Info("admin HTTP plane listening", zap.String("addr", cfg.AdminAddr))
			if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		if adminSrv != nil {
			adminSrv.Close()
		}
		return srv.Close()
	})

	log.Info("redisd starting", zap.String("bind", cfg.Bind), zap.Int("port", cfg.Port))

	if err := g.Wait(); err != nil {
		log.Fatal("server exited with error", zap.Error(err))
	}

	// Give in-flight connections a moment to observe the closed listener
	// before the process exits.
	time.Sleep(50 * time.Millisecond)
}
