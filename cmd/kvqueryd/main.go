// Command kvqueryd loads delta files from a blob store into a KeyValueCache
// and serves lookups and set queries over HTTP.
//
//	kvqueryd -store local -dir ./deltas -addr :8080
//	kvqueryd -store s3 -bucket my-bucket -prefix deltas/ -ddb-table kvquery-commits
//	kvqueryd -store minio -endpoint localhost:9000 -bucket deltas
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hupe1980/kvquery"
	"github.com/hupe1980/kvquery/blobstore"
	"github.com/hupe1980/kvquery/blobstore/minio"
	"github.com/hupe1980/kvquery/blobstore/s3"
	"github.com/hupe1980/kvquery/internal/server"
	"github.com/hupe1980/kvquery/loader"
)

type options struct {
	addr      string
	logLevel  string
	logFormat string

	store    string
	dir      string
	bucket   string
	prefix   string
	region   string
	endpoint string
	ddbTable string

	minioAccessKey string
	minioSecretKey string
	minioSecure    bool

	poll          time.Duration
	maxQueries    int64
	failFast      bool
	loadWorkers   int64
	loadMemory    int64
	loadRate      int64
	keepDeletions bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options

	fs := flag.NewFlagSet("kvqueryd", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.addr, "addr", ":8080", "HTTP listen address")
	fs.StringVar(&o.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	fs.StringVar(&o.logFormat, "log-format", "text", "Log format: text or json")

	fs.StringVar(&o.store, "store", "local", "Delta source: local, s3 or minio")
	fs.StringVar(&o.dir, "dir", "./deltas", "Directory for -store local")
	fs.StringVar(&o.bucket, "bucket", "", "Bucket for -store s3 or minio")
	fs.StringVar(&o.prefix, "prefix", "", "Key prefix inside the bucket")
	fs.StringVar(&o.region, "region", "", "AWS or MinIO region")
	fs.StringVar(&o.endpoint, "endpoint", "", "Custom S3 endpoint, or the MinIO host:port")
	fs.StringVar(&o.ddbTable, "ddb-table", "", "DynamoDB table holding CURRENT for -store s3")

	fs.StringVar(&o.minioAccessKey, "minio-access-key", os.Getenv("MINIO_ACCESS_KEY"), "MinIO access key")
	fs.StringVar(&o.minioSecretKey, "minio-secret-key", os.Getenv("MINIO_SECRET_KEY"), "MinIO secret key")
	fs.BoolVar(&o.minioSecure, "minio-secure", false, "Use TLS for MinIO")

	fs.DurationVar(&o.poll, "poll", 10*time.Second, "Delta poll interval")
	fs.Int64Var(&o.maxQueries, "max-concurrent-queries", 0, "Concurrent query limit (0 = unlimited)")
	fs.BoolVar(&o.failFast, "fail-fast", false, "Reject queries beyond the limit with 429 instead of queueing them")
	fs.Int64Var(&o.loadWorkers, "load-workers", 4, "Concurrent delta file decoders")
	fs.Int64Var(&o.loadMemory, "load-memory", 256<<20, "Bytes of delta data buffered while loading (0 = unlimited)")
	fs.Int64Var(&o.loadRate, "load-rate", 0, "Blob store read limit in bytes/s (0 = unlimited)")
	fs.BoolVar(&o.keepDeletions, "keep-deletions", false, "Keep tombstones after each load")

	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.poll <= 0 {
		return o, fmt.Errorf("%w: -poll must be positive", kvquery.ErrInvalidConfiguration)
	}
	return o, nil
}

func newLogger(o options) (*kvquery.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(o.logLevel)); err != nil {
		return nil, fmt.Errorf("%w: %v", kvquery.ErrInvalidConfiguration, err)
	}

	switch o.logFormat {
	case "text":
		return kvquery.NewTextLogger(level), nil
	case "json":
		return kvquery.NewJSONLogger(level), nil
	default:
		return nil, fmt.Errorf("%w: unknown log format %q", kvquery.ErrInvalidConfiguration, o.logFormat)
	}
}

func newStore(ctx context.Context, o options) (blobstore.BlobStore, error) {
	switch o.store {
	case "local":
		return blobstore.NewLocalStore(o.dir), nil

	case "s3":
		if o.bucket == "" {
			return nil, fmt.Errorf("%w: -bucket is required", kvquery.ErrInvalidConfiguration)
		}
		var s3Opts []s3.Option
		if o.region != "" {
			s3Opts = append(s3Opts, s3.WithRegion(o.region))
		}
		if o.endpoint != "" {
			s3Opts = append(s3Opts, s3.WithEndpoint(o.endpoint))
		}
		store, err := s3.New(ctx, o.bucket, o.prefix, s3Opts...)
		if err != nil {
			return nil, err
		}
		if o.ddbTable == "" {
			return store, nil
		}

		var loadOpts []func(*config.LoadOptions) error
		if o.region != "" {
			loadOpts = append(loadOpts, config.WithRegion(o.region))
		}
		cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		baseURI := fmt.Sprintf("s3://%s/%s", o.bucket, o.prefix)
		return s3.NewDDBCommitStore(store, dynamodb.NewFromConfig(cfg), o.ddbTable, baseURI), nil

	case "minio":
		if o.bucket == "" || o.endpoint == "" {
			return nil, fmt.Errorf("%w: -bucket and -endpoint are required", kvquery.ErrInvalidConfiguration)
		}
		return minio.New(minio.Config{
			Endpoint:  o.endpoint,
			AccessKey: o.minioAccessKey,
			SecretKey: o.minioSecretKey,
			Secure:    o.minioSecure,
			Region:    o.region,
		}, o.bucket, o.prefix)

	default:
		return nil, fmt.Errorf("%w: unknown store %q", kvquery.ErrInvalidConfiguration, o.store)
	}
}

func run(ctx context.Context, o options) error {
	logger, err := newLogger(o)
	if err != nil {
		return err
	}

	store, err := newStore(ctx, o)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	kv, err := kvquery.New(
		kvquery.WithLogger(logger),
		kvquery.WithMetricsCollector(server.NewPrometheusCollector(reg)),
		kvquery.WithResourceLimits(kvquery.ResourceLimits{
			MaxConcurrentQueries: o.maxQueries,
			FailFast:             o.failFast,
			LoadWorkers:          o.loadWorkers,
			LoadMemoryBytes:      o.loadMemory,
			LoadBytesPerSec:      o.loadRate,
		}),
		kvquery.WithBlobStore(store, loader.WithRemoveDeletedKeys(!o.keepDeletions)),
	)
	if err != nil {
		return err
	}
	defer kv.Close()

	res, err := kv.Load(ctx)
	if err != nil {
		return fmt.Errorf("initial load: %w", err)
	}
	logger.Info("initial load complete", "files", res.Files, "records", res.Records, "last_file", res.LastFile)

	srv := server.New(kv, server.WithLogger(logger.Logger), server.WithGatherer(reg))

	errCh := make(chan error, 2)
	go func() { errCh <- kv.Run(ctx, o.poll) }()
	go func() { errCh <- srv.Start(o.addr) }()

	select {
	case <-ctx.Done():
	case err = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		err = errors.Join(err, serr)
	}
	return err
}

func main() {
	o, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, o); err != nil {
		slog.Error("kvqueryd failed", "error", err)
		os.Exit(1)
	}
}
