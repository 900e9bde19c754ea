package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sitecraft/webhook-outbox/config"
	"github.com/sitecraft/webhook-outbox/delivery"
	deliveryredis "github.com/sitecraft/webhook-outbox/delivery/redis"
	"github.com/sitecraft/webhook-outbox/delivery/sender"
	"github.com/sitecraft/webhook-outbox/endpoints"
	"github.com/sitecraft/webhook-outbox/internal/http/chi"
	"github.com/sitecraft/webhook-outbox/metrics"
)

const TIMEOUT = 30 * time.Second

/* main wires the application together: configuration, storage, the
 * delivery service, the background sweeper and the HTTP surface.
 * Imports flow one direction only: the binary imports the business
 * layer, which imports the storage layer.
 */

func main() {
	cfg, err := config.GetConfig()
	if err != nil {
		fmt.Println(err)
		return
	}
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT,
	)
	defer stop()

	repo, err := deliveryredis.NewRepository(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer repo.Close(ctx)

	// Seed endpoint registrations from the YAML file, if present
	if cfg.EndpointsFile != "" {
		loader := endpoints.NewLoader()
		if err := loader.Load(cfg.EndpointsFile); err != nil {
			fmt.Println(err)
			return
		}
		if err := loader.Seed(ctx, repo); err != nil {
			fmt.Println(err)
			return
		}
	}

	health := delivery.NewHealthTracker(repo, cfg.FailureThreshold)
	s := delivery.NewService(repo, sender.New(), health)
	if cfg.SweepLimit > 0 {
		s.SweepLimit = cfg.SweepLimit
	}

	// OTel metrics with the Prometheus reader; served on /metrics
	collector := metrics.NewRedisCollector(repo.GetClient())
	exporter, err := metrics.NewOTelExporter(collector)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer exporter.Shutdown(context.Background())

	sweeper := delivery.NewSweeper(s)
	if err := sweeper.Start(ctx, cfg.SweepSchedule); err != nil {
		fmt.Println(err)
		return
	}
	defer sweeper.Stop()

	r := chi.Handlers(ctx, s)
	http.Handle("/", r)
	srv := &http.Server{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		Addr:         ":" + cfg.Port,
		Handler:      http.DefaultServeMux,
	}

	errShutdown := make(chan error, 1)
	go shutdown(srv, ctx, errShutdown)
	fmt.Printf("Listening on port %s\n", cfg.Port)
	err = srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		fmt.Println(err)
		return
	}
	err = <-errShutdown
	if err != nil {
		fmt.Println(err)
		return
	}
}

func shutdown(server *http.Server, ctxShutdown context.Context, errShutdown chan error) {
	<-ctxShutdown.Done()

	ctxTimeout, stop := context.WithTimeout(context.Background(), TIMEOUT)
	defer stop()

	err := server.Shutdown(ctxTimeout)
	switch err {
	case nil:
		fmt.Printf("\nShutting down server...\n")
		errShutdown <- nil
	case context.DeadlineExceeded:
		errShutdown <- fmt.Errorf("Forcing closing the server")
	default:
		errShutdown <- fmt.Errorf("Forcing closing the server")
	}
}
