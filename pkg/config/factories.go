package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/mitchellh/mapstructure"
	"github.com/vdiskfs/vdiskfs/internal/logger"
	"github.com/vdiskfs/vdiskfs/pkg/backup"
	"github.com/vdiskfs/vdiskfs/pkg/store"
	badgerStore "github.com/vdiskfs/vdiskfs/pkg/store/badger"
	imageStore "github.com/vdiskfs/vdiskfs/pkg/store/image"
	memoryStore "github.com/vdiskfs/vdiskfs/pkg/store/memory"
)

// Geometry converts the configured dimensions into the store type.
func (g GeometryConfig) Geometry() store.Geometry {
	return store.Geometry{
		BlockSize:     g.BlockSize,
		BlockCount:    g.BlockCount,
		InodeCapacity: g.InodeCapacity,
	}
}

// CreateStore creates a backing store based on configuration.
//
// This factory uses the Type field to determine which backend to create,
// then decodes the type-specific configuration from the corresponding
// map and passes it to the backend's constructor.
//
// Supported types:
//   - "image": single-file virtual disk image (pkg/store/image)
//   - "badger": BadgerDB-backed store (pkg/store/badger)
//   - "memory": in-memory store, nothing survives the process
func CreateStore(cfg *StorageConfig) (store.Store, error) {
	geo := cfg.Geometry.Geometry()

	switch cfg.Type {
	case "image":
		return createImageStore(cfg.Image, geo)
	case "badger":
		return createBadgerStore(cfg.Badger, geo)
	case "memory":
		return memoryStore.New(geo), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %q", cfg.Type)
	}
}

// createImageStore creates the single-file image store.
func createImageStore(options map[string]any, geo store.Geometry) (store.Store, error) {
	type ImageStoreConfig struct {
		Path string `mapstructure:"path"`
	}

	var storeCfg ImageStoreConfig
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode image store config: %w", err)
	}

	if storeCfg.Path == "" {
		return nil, fmt.Errorf("image store: path is required")
	}

	st, err := imageStore.Open(storeCfg.Path, geo)
	if err != nil {
		return nil, fmt.Errorf("failed to open image store: %w", err)
	}

	logger.Info("Image store opened: %s (%d x %d byte blocks, %d inode slots)",
		storeCfg.Path, geo.BlockCount, geo.BlockSize, geo.InodeCapacity)
	return st, nil
}

// createBadgerStore creates the BadgerDB-backed store.
func createBadgerStore(options map[string]any, geo store.Geometry) (store.Store, error) {
	type BadgerStoreConfig struct {
		DBPath   string `mapstructure:"db_path"`
		InMemory bool   `mapstructure:"in_memory"`
	}

	var storeCfg BadgerStoreConfig
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode badger store config: %w", err)
	}

	if storeCfg.DBPath == "" && !storeCfg.InMemory {
		return nil, fmt.Errorf("badger store: db_path is required unless in_memory is set")
	}

	st, err := badgerStore.Open(badgerStore.Config{
		DBPath:   storeCfg.DBPath,
		InMemory: storeCfg.InMemory,
	}, geo)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}

	logger.Info("Badger store opened: %s", storeCfg.DBPath)
	return st, nil
}

// CreateBackupUploader creates the S3 backup uploader from
// configuration.
//
// The S3 section supports custom endpoints (MinIO, Localstack) and
// static credentials; when no credentials are given the default AWS
// credential chain applies.
func CreateBackupUploader(ctx context.Context, cfg *BackupConfig) (*backup.Uploader, error) {
	type S3BackupConfig struct {
		Region          string `mapstructure:"region"`
		Bucket          string `mapstructure:"bucket"`
		KeyPrefix       string `mapstructure:"key_prefix"`
		Endpoint        string `mapstructure:"endpoint"`
		AccessKeyID     string `mapstructure:"access_key_id"`
		SecretAccessKey string `mapstructure:"secret_access_key"`
		MaxRetries      int    `mapstructure:"max_retries"`
	}

	var s3Cfg S3BackupConfig
	if err := mapstructure.Decode(cfg.S3, &s3Cfg); err != nil {
		return nil, fmt.Errorf("failed to decode S3 backup config: %w", err)
	}

	if s3Cfg.Bucket == "" {
		return nil, fmt.Errorf("S3 backup: bucket is required")
	}
	if s3Cfg.Region == "" {
		return nil, fmt.Errorf("S3 backup: region is required")
	}

	var configOptions []func(*awsConfig.LoadOptions) error
	configOptions = append(configOptions, awsConfig.WithRegion(s3Cfg.Region))

	// Custom endpoint for S3-compatible services
	if s3Cfg.Endpoint != "" {
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		customResolver := aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
				return aws.Endpoint{
					URL:               s3Cfg.Endpoint,
					HostnameImmutable: true,
					Source:            aws.EndpointSourceCustom,
				}, nil
			},
		)
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		configOptions = append(configOptions, awsConfig.WithEndpointResolverWithOptions(customResolver))
	}

	if s3Cfg.AccessKeyID != "" && s3Cfg.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(
			s3Cfg.AccessKeyID,
			s3Cfg.SecretAccessKey,
			"", // session token (empty for static credentials)
		)
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	maxRetries := s3Cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// Path-style addressing for MinIO/Localstack compatibility
		if s3Cfg.Endpoint != "" {
			o.UsePathStyle = true
		}
	})

	uploader, err := backup.NewUploader(backup.UploaderConfig{
		Client:    client,
		Bucket:    s3Cfg.Bucket,
		KeyPrefix: s3Cfg.KeyPrefix,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("S3 backup target: bucket=%s, region=%s, prefix=%s",
		s3Cfg.Bucket, s3Cfg.Region, s3Cfg.KeyPrefix)
	return uploader, nil
}
