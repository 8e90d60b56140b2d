package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesplatform/schedopt/pkg/api"
	"github.com/mesplatform/schedopt/pkg/logging"
	"github.com/mesplatform/schedopt/pkg/metrics"
	"github.com/mesplatform/schedopt/pkg/ratelimit"
	"github.com/mesplatform/schedopt/pkg/scheduler"
	"github.com/mesplatform/schedopt/pkg/shutdown"
	tlsutil "github.com/mesplatform/schedopt/pkg/tls"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduling HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (overrides server.port)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg := appConfig
	if servePort > 0 {
		cfg.Server.Port = servePort
	}

	logger := newLogger(cfg)
	defer logger.Close()

	s, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	tracer, err := newTracer(cfg)
	if err != nil {
		s.Close()
		return err
	}

	capability := scheduler.ProbeCapability(cfg.MinFreeMemory())
	logger.Info("Solver capability probed", logging.Fields{
		"available":    capability.Available,
		"logical_cpus": capability.LogicalCPUs,
		"free_memory":  capability.FreeMemory,
		"reason":       capability.Reason,
	})

	m := metrics.New()
	optimizer := scheduler.NewOptimizer(cfg.SchedulerConfig(), capability,
		scheduler.WithLogger(logger.WithField("component", "optimizer")),
		scheduler.WithMetrics(m),
		scheduler.WithTracer(tracer),
	)

	limiter := ratelimit.NewLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
	handler := api.NewHandler(s, optimizer, logger.WithField("component", "api"))
	router := api.NewRouter(handler, api.RouterOptions{Metrics: m, Tracer: tracer, Limiter: limiter})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	if cfg.Server.TLSCert != "" {
		tlsCfg, err := tlsutil.LoadServerConfig(cfg.Server.TLSCert, cfg.Server.TLSKey, cfg.Server.TLSClientCA)
		if err != nil {
			s.Close()
			return err
		}
		srv.TLSConfig = tlsCfg
	}

	mgr := shutdown.New(cfg.Server.ShutdownGrace, logger)
	mgr.Register("store", shutdown.CloseResource(s))
	mgr.Register("tracer", tracer.Shutdown)
	mgr.Register("http", shutdown.StopHTTPServer(srv))

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-mgr.Done():
				return
			case <-ticker.C:
				if n := limiter.Cleanup(10 * time.Minute); n > 0 {
					logger.Debug("Dropped idle rate limiters", logging.Fields{"count": n})
				}
			}
		}
	}()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Listening", logging.Fields{"addr": srv.Addr, "tls": srv.TLSConfig != nil, "version": Version})
		var err error
		if srv.TLSConfig != nil {
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			serveErr <- err
			mgr.Trigger()
		}
	}()

	if err := mgr.Wait(ctx); err != nil {
		logger.Warn("Shutdown finished with errors", logging.Fields{"error": err.Error()})
	}

	select {
	case err := <-serveErr:
		return fmt.Errorf("server failed: %w", err)
	default:
		return nil
	}
}
