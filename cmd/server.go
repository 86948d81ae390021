/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/blnkfinance/portalsync"
	"github.com/blnkfinance/portalsync/api"
	"github.com/blnkfinance/portalsync/config"
	pglistener "github.com/blnkfinance/portalsync/internal/pg-listener"
	trace "github.com/blnkfinance/portalsync/internal/traces"
	"github.com/caddyserver/certmagic"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

/*
serveTLS starts an HTTPS server using CertMagic for automatic certificate management.
If no domain is configured the server defaults to localhost.
*/
func serveTLS(ctx context.Context, r *gin.Engine, conf config.ServerConfig) error {
	certmagic.DefaultACME.Agreed = true
	certmagic.DefaultACME.Email = conf.Email
	cfg := certmagic.NewDefault()
	cfg.Storage = &certmagic.FileStorage{Path: "certmagic"}

	domains := []string{conf.Domain}
	if conf.Domain == "" {
		log.Println("No domain specified, defaulting to localhost")
		domains = []string{"localhost"}
	}

	if err := cfg.ManageSync(ctx, domains); err != nil {
		return err
	}

	server := &http.Server{
		Addr:      ":" + conf.Port,
		Handler:   r,
		TLSConfig: cfg.TLSConfig(),
	}
	go shutdownOnDone(ctx, server)

	log.Printf("Starting HTTPS server on %s\n", conf.Port)
	if err := server.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func serveHTTP(ctx context.Context, r *gin.Engine, conf config.ServerConfig) error {
	server := &http.Server{Addr: ":" + conf.Port, Handler: r}
	go shutdownOnDone(ctx, server)

	log.Printf("Starting server on http://localhost:%s", conf.Port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func shutdownOnDone(ctx context.Context, server *http.Server) {
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("http server shutdown: %v", err)
	}
}

func startServer(ctx context.Context, router *gin.Engine, cfg config.ServerConfig) error {
	if cfg.SSL {
		return serveTLS(ctx, router, cfg)
	}
	return serveHTTP(ctx, router, cfg)
}

func initializeObservability(ctx context.Context, cfg *config.Configuration) (func(context.Context) error, error) {
	if !cfg.EnableTelemetry {
		return func(context.Context) error { return nil }, nil
	}
	shutdown, err := trace.SetupOTelSDK(ctx, cfg.ProjectName)
	if err != nil {
		return nil, fmt.Errorf("error setting up OTel SDK: %v", err)
	}
	return shutdown, nil
}

// initializeWorkerServer builds the asynq server that drains the sync queues.
// Every queue gets the same weight; ordering within a queue relies on the
// configured concurrency.
func initializeWorkerServer(conf *config.Configuration, queue *portalsync.Queue) (*asynq.Server, error) {
	redisOption, err := portalsync.RedisConnOpt(conf.Redis.Dns)
	if err != nil {
		return nil, err
	}

	queues := make(map[string]int)
	for _, name := range queue.QueueNames() {
		queues[name] = 1
	}

	return asynq.NewServer(redisOption, asynq.Config{
		Concurrency:    conf.Queue.Concurrency,
		Queues:         queues,
		RetryDelayFunc: portalsync.RetryDelay,
		Logger:         logrus.StandardLogger(),
	}), nil
}

func initializeTaskHandlers(engine *portalsync.PortalSync, mux *asynq.ServeMux) {
	for _, name := range engine.Queue().QueueNames() {
		mux.HandleFunc(name, engine.ProcessSyncTask)
	}
}

func initializeListener(conf *config.Configuration, engine *portalsync.PortalSync) *pglistener.DBListener {
	return pglistener.NewDBListener(pglistener.ListenerConfig{
		PgConnStr:    conf.DataSource.Dns,
		Channel:      conf.Listener.Channel,
		MinReconnect: time.Duration(conf.Listener.MinReconnectSeconds) * time.Second,
		MaxReconnect: time.Duration(conf.Listener.MaxReconnectSeconds) * time.Second,
		PingInterval: time.Duration(conf.Listener.PingIntervalSeconds) * time.Second,
	}, engine.ChangeHandler(), engine.Status())
}

/*
serverCommands returns the `start` command. It runs the API, the change feed
listener and the sync worker in one process so the status endpoint sees every
outbound delivery.
*/
func serverCommands(app *syncInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "start portalsync server",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			defer func() {
				if err := app.sync.Close(); err != nil {
					log.Printf("Error closing portal sync: %v", err)
				}
			}()

			cfg := app.cnf
			shutdown, err := initializeObservability(ctx, cfg)
			if err != nil {
				log.Fatal(err)
			}
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					log.Printf("Error during shutdown: %v", err)
				}
			}()

			srv, err := initializeWorkerServer(cfg, app.sync.Queue())
			if err != nil {
				log.Fatal(err)
			}
			mux := asynq.NewServeMux()
			initializeTaskHandlers(app.sync, mux)
			if err := srv.Start(mux); err != nil {
				log.Fatalf("could not start sync worker: %v", err)
			}
			defer srv.Shutdown()

			listener := initializeListener(cfg, app.sync)
			if err := listener.Start(ctx); err != nil {
				log.Fatalf("could not start change feed listener: %v", err)
			}
			defer func() {
				if err := listener.Stop(); err != nil {
					log.Printf("Error stopping change feed listener: %v", err)
				}
			}()

			router := api.NewAPI(app.sync).Router()
			if err := startServer(ctx, router, cfg.Server); err != nil {
				log.Printf("server stopped: %v", err)
			}
		},
	}

	return cmd
}
