package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	nyxlog "nyx/internal/log"
	"nyx/internal/relay"
	"nyx/internal/signaling"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var (
		listen   string
		metrics  string
		logFile  string
		logLevel string
	)
	root := &cobra.Command{
		Use:          "relay",
		Short:        "nyx signaling relay",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !nyxlog.ValidLevel(logLevel) {
				return fmt.Errorf("invalid log level %q", logLevel)
			}
			backend, err := nyxlog.New(logFile, logLevel, false)
			if err != nil {
				return err
			}
			defer backend.Close()
			return run(cmd.Context(), backend, listen, metrics)
		},
	}
	root.Flags().StringVar(&listen, "listen", ":8080", "API listen address")
	root.Flags().StringVar(&metrics, "metrics", ":6543", "metrics listen address, empty to disable")
	root.Flags().StringVar(&logFile, "log-file", "", "log file (default stdout)")
	root.Flags().StringVar(&logLevel, "log-level", "NOTICE", "log level")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, backend *nyxlog.Backend, listen, metricsAddr string) error {
	log := backend.GetLogger("relay")

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for range hup {
			if err := backend.Rotate(); err != nil {
				fmt.Fprintf(os.Stderr, "relay: log rotate: %v\n", err)
			}
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	store := signaling.NewMemoryStore()
	api := relay.NewServer(store, log, reg)
	servers := []*http.Server{{
		Addr:              listen,
		Handler:           api,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          backend.GetGoLogger("http", "WARNING"),
	}}
	// Shutdown does not track hijacked websocket connections.
	servers[0].RegisterOnShutdown(api.CloseWatches)
	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		servers = append(servers, &http.Server{
			Addr:              metricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			ErrorLog:          backend.GetGoLogger("metrics", "WARNING"),
		})
	}

	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		go func() {
			log.Noticef("listening on %s", srv.Addr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	var err error
	select {
	case <-ctx.Done():
		log.Notice("shutting down")
	case err = <-errCh:
		log.Errorf("server: %v", err)
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, srv := range servers {
		if serr := srv.Shutdown(sctx); serr != nil {
			log.Warningf("shutdown %s: %v", srv.Addr, serr)
		}
	}
	st := store.Stats()
	log.Noticef("stopped with %d calls, %d profiles, %d watches", st.Calls, st.Profiles, st.Watches)
	return err
}
