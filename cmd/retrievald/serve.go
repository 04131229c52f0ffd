package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/cbir-io/retrieval/internal/archive"
	"github.com/cbir-io/retrieval/internal/engine/memory"
	"github.com/cbir-io/retrieval/internal/engine/qdrantidx"
	"github.com/cbir-io/retrieval/internal/logger"
	"github.com/cbir-io/retrieval/internal/queue"
	"github.com/cbir-io/retrieval/internal/registry"
	"github.com/cbir-io/retrieval/internal/rest"
	"github.com/cbir-io/retrieval/internal/retrieval"
)

var serveFlags struct {
	addr    string
	backend string
	shards  []string

	minWidth  int
	minHeight int

	qdrantHost       string
	qdrantPort       int
	qdrantAPIKey     string
	collectionPrefix string

	amqpURL   string
	amqpQueue string

	s3Endpoint  string
	s3AccessKey string
	s3SecretKey string
	s3Bucket    string
	s3SSL       bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gateway",
	Long: `Run the HTTP gateway in front of the configured engine.

The memory engine keeps everything in process and needs no external
services. The qdrant engine persists shards as Qdrant collections; pair
it with --amqp-url so asynchronous ingests survive a restart, and with
--s3-endpoint to keep an archive of the raw uploads.`,
	RunE: func(*cobra.Command, []string) error {
		return serve()
	},
}

func serve() error {
	opts := []fx.Option{
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
		logger.FXModule,
		fx.Supply(logger.Config{Level: logLevel}),
		registry.FXModule,
		retrieval.FXModule,
		rest.FXModule,
		fx.Supply(rest.Config{Addr: serveFlags.addr}),
		fx.Invoke(registerBootstrapShards),
	}

	switch serveFlags.backend {
	case "memory":
		cfg := memory.DefaultConfig()
		cfg.MinWidth = serveFlags.minWidth
		cfg.MinHeight = serveFlags.minHeight
		opts = append(opts, memory.FXModule, fx.Supply(cfg))
	case "qdrant":
		cfg := qdrantidx.DefaultConfig()
		cfg.Host = serveFlags.qdrantHost
		cfg.Port = serveFlags.qdrantPort
		cfg.APIKey = serveFlags.qdrantAPIKey
		cfg.CollectionPrefix = serveFlags.collectionPrefix
		cfg.MinWidth = serveFlags.minWidth
		cfg.MinHeight = serveFlags.minHeight
		opts = append(opts, qdrantidx.FXModule, fx.Supply(cfg))
	default:
		return fmt.Errorf("unknown backend %q, want memory or qdrant", serveFlags.backend)
	}

	if serveFlags.amqpURL != "" {
		cfg := queue.DefaultConfig()
		cfg.URL = serveFlags.amqpURL
		cfg.Queue = serveFlags.amqpQueue
		opts = append(opts, queue.FXModule, retrieval.WorkerFXModule, fx.Supply(cfg))
	}

	if serveFlags.s3Endpoint != "" {
		cfg := archive.DefaultConfig()
		cfg.Endpoint = serveFlags.s3Endpoint
		cfg.AccessKey = serveFlags.s3AccessKey
		cfg.SecretKey = serveFlags.s3SecretKey
		cfg.Bucket = serveFlags.s3Bucket
		cfg.UseSSL = serveFlags.s3SSL
		opts = append(opts, archive.FXModule, fx.Supply(cfg))
	}

	app := fx.New(opts...)
	app.Run()
	return app.Err()
}

// registerBootstrapShards creates the shards named on the command line
// before the server starts accepting traffic. Without at least one
// shard, round-robin ingestion has nowhere to go.
func registerBootstrapShards(lc fx.Lifecycle, reg *registry.Registry, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			for _, name := range serveFlags.shards {
				if _, err := reg.GetOrCreate(ctx, name); err != nil {
					return fmt.Errorf("bootstrap shard %q: %w", name, err)
				}
				log.Info("shard ready", zap.String("shard", name))
			}
			return nil
		},
	})
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveFlags.addr, "addr", envOr("HTTP_ADDR", ":8080"), "HTTP listen address")
	f.StringVar(&serveFlags.backend, "backend", envOr("ENGINE_BACKEND", "memory"), "index engine: memory|qdrant")
	f.StringSliceVar(&serveFlags.shards, "shards", nil, "shards to create at startup")

	f.IntVar(&serveFlags.minWidth, "min-width", 8, "smallest accepted image width")
	f.IntVar(&serveFlags.minHeight, "min-height", 8, "smallest accepted image height")

	f.StringVar(&serveFlags.qdrantHost, "qdrant-host", envOr("QDRANT_HOST", "localhost"), "Qdrant host")
	f.IntVar(&serveFlags.qdrantPort, "qdrant-port", 6334, "Qdrant gRPC port")
	f.StringVar(&serveFlags.qdrantAPIKey, "qdrant-api-key", envOr("QDRANT_API_KEY", ""), "Qdrant API key")
	f.StringVar(&serveFlags.collectionPrefix, "collection-prefix", envOr("QDRANT_COLLECTION_PREFIX", "cbir_"), "Qdrant collection name prefix")

	f.StringVar(&serveFlags.amqpURL, "amqp-url", envOr("AMQP_URL", ""), "AMQP broker URL; empty disables the job queue")
	f.StringVar(&serveFlags.amqpQueue, "amqp-queue", envOr("AMQP_QUEUE", "indexing-jobs"), "AMQP queue name")

	f.StringVar(&serveFlags.s3Endpoint, "s3-endpoint", envOr("MINIO_ENDPOINT", ""), "S3-compatible endpoint; empty disables archiving")
	f.StringVar(&serveFlags.s3AccessKey, "s3-access-key", envOr("MINIO_ACCESS_KEY", ""), "S3 access key")
	f.StringVar(&serveFlags.s3SecretKey, "s3-secret-key", envOr("MINIO_SECRET_KEY", ""), "S3 secret key")
	f.StringVar(&serveFlags.s3Bucket, "s3-bucket", envOr("MINIO_BUCKET", "cbir-images"), "archive bucket")
	f.BoolVar(&serveFlags.s3SSL, "s3-ssl", false, "use TLS towards the S3 endpoint")

	rootCmd.AddCommand(serveCmd)
}
