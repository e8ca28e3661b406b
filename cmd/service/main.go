package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/2beens/fitstreak/internal"
	"github.com/2beens/fitstreak/internal/config"
	"github.com/2beens/fitstreak/internal/logging"
	"github.com/2beens/fitstreak/internal/storage"

	log "github.com/sirupsen/logrus"
)

func main() {
	fmt.Println("starting ...")

	env := flag.String("env", "development", "environment [prod | production | dev | development]")
	configPath := flag.String("config", "./config.toml", "path for the TOML config file")
	flag.Parse()

	log.Warnf("---->> running in [%s] environment", *env)

	cfg, err := config.Load(*env, *configPath)
	if err != nil {
		panic(err)
	}

	sentryDSN := os.Getenv("SENTRY_DSN")
	logging.Setup(logging.LoggerSetupParams{
		LogFileName:      cfg.LogsPath,
		LogToStdout:      cfg.LogToStdout,
		LogLevel:         cfg.LogLevel,
		LogFormatJSON:    cfg.LogFormatJSON,
		Environment:      cfg.Environment,
		SentryEnabled:    cfg.SentryEnabled,
		SentryDSN:        sentryDSN,
		SentryServerName: "fitstreak-service",
	})

	log.Debugf("using port: %d", cfg.Port)
	log.Debugf("using server logs path: [%s]", cfg.LogsPath)
	log.Debugf("calendar days cut in timezone: [%s]", cfg.Timezone)

	adminSecretHash := os.Getenv("FITSTREAK_ADMIN_SECRET_HASH")
	if adminSecretHash == "" {
		log.Errorf("admin secret hash not set, catalog reload disabled. use FITSTREAK_ADMIN_SECRET_HASH")
	}

	redisPassword := os.Getenv("FITSTREAK_REDIS_PASS")
	if redisPassword == "" {
		log.Errorf("redis password not set. use FITSTREAK_REDIS_PASS")
	}

	s3Credentials := storage.S3Credentials{
		AccessKeyID:     os.Getenv("FITSTREAK_S3_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("FITSTREAK_S3_SECRET_ACCESS_KEY"),
	}
	if cfg.S3.BucketName != "" && s3Credentials.AccessKeyID == "" {
		log.Warnln("s3 access key not set, falling back to the default aws credential chain")
	}

	if otelServiceName := os.Getenv("OTEL_SERVICE_NAME"); otelServiceName == "" {
		log.Warnln("OTEL_SERVICE_NAME env var not set")
	}

	honeycombEnabled := os.Getenv("HONEYCOMB_ENABLED") == "true"
	if honeycombEnabled {
		if honeycombApiKey := os.Getenv("HONEYCOMB_API_KEY"); honeycombApiKey == "" {
			log.Warnln("HONEYCOMB_API_KEY env var not set")
		}
	} else {
		log.Debugln("honeycomb tracing disabled")
	}

	chOsInterrupt := make(chan os.Signal, 1)
	signal.Notify(chOsInterrupt, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())

	server, err := internal.NewServer(
		ctx,
		internal.NewServerParams{
			Config:                  cfg,
			DBPassword:              os.Getenv("FITSTREAK_DB_PASS"),
			RedisPassword:           redisPassword,
			AdminSecretHash:         adminSecretHash,
			S3Credentials:           s3Credentials,
			HoneycombTracingEnabled: honeycombEnabled,
		},
	)
	if err != nil {
		log.Fatalf("new server: %s", err)
	}

	server.Serve(cfg.Host, cfg.Port)

	receivedSig := <-chOsInterrupt
	log.Warnf("signal [%s] received, killing everything ...", receivedSig)
	cancel()

	server.GracefulShutdown()
}
