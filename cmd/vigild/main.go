// vigild is the candles store service: an HTTP API over the shared
// candles collection, backed by Postgres with a SQLite fallback.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"

	"github.com/vigilspace/vigil/internal/config"
	"github.com/vigilspace/vigil/internal/database"
	"github.com/vigilspace/vigil/internal/logging"
	"github.com/vigilspace/vigil/internal/server"
	"github.com/vigilspace/vigil/internal/store/gormstore"
)

func main() {
	if err := config.Load("."); err != nil {
		panic(err)
	}

	log, err := logging.New(logging.Options{
		Level:          config.GetString("logLevel"),
		Console:        config.GetBool("logConsole"),
		GraylogAddress: graylogAddress(),
	})
	if err != nil {
		panic(err)
	}

	db := database.NewManager(log)
	if err := db.Connect(); err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := db.Setup(); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate schema")
	}

	backend := gormstore.New(db.DB)
	if err := backend.Init(); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize store")
	}
	defer backend.Close()

	metrics, err := server.NewCollector(prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to register metrics")
	}

	srv := &server.Server{
		Store:   backend,
		Log:     log,
		Metrics: metrics,
		Config: server.Config{
			Addr:                 config.GetString("http.addr"),
			APIKey:               config.GetString("api.apiKey"),
			CORSAllowedOrigins:   viper.GetStringSlice("http.cors.allowedOrigins"),
			CORSAllowCredentials: config.GetBool("http.cors.allowCredentials"),
			MaxNoteLength:        config.GetInt("session.maxNoteLength"),
		},
	}

	httpSrv := &http.Server{
		Addr:              srv.Config.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Config.Addr).Msg("vigild listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
}

func graylogAddress() string {
	if !config.GetBool("graylog.enabled") {
		return ""
	}
	return config.GetString("graylog.address")
}
