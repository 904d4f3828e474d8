package main

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"

	"orquidea/config"
	"orquidea/storage"
)

const backupPrefix = "backups/"

// BackupConfig is read on top of the application's DB_* settings.
type BackupConfig struct {
	Bucket    string        `envconfig:"BACKUP_S3_BUCKET" required:"true"`
	Endpoint  string        `envconfig:"BACKUP_S3_ENDPOINT"`
	AccessKey string        `envconfig:"BACKUP_S3_ACCESS_KEY" required:"true"`
	SecretKey string        `envconfig:"BACKUP_S3_SECRET_KEY" required:"true"`
	Region    string        `envconfig:"BACKUP_S3_REGION" default:"us-east-1"`
	Keep      int           `envconfig:"KEEP_BACKUPS" default:"4"`
	Timeout   time.Duration `envconfig:"BACKUP_TIMEOUT" default:"15m"`
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()
	logging.Info("Starting backup")

	appCfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}
	var cfg BackupConfig
	if err := envconfig.Process("", &cfg); err != nil {
		logging.Fatal("Backup config load error", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	dump, err := createDump(ctx, appCfg)
	if err != nil {
		logging.Fatal("Database dump failed", zap.Error(err))
	}

	client, err := storage.NewS3Client(ctx, storage.S3Options{
		URL:    cfg.Endpoint,
		Region: cfg.Region,
		Key:    cfg.AccessKey,
		Secret: cfg.SecretKey,
	})
	if err != nil {
		logging.Fatal("S3 client creation failed", zap.Error(err))
	}

	key := backupKey(time.Now())
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(dump),
		ContentType: aws.String("application/gzip"),
	})
	if err != nil {
		logging.Fatal("Backup upload failed", zap.Error(err))
	}
	logging.Info("Backup uploaded", zap.String("bucket", cfg.Bucket), zap.String("key", key), zap.Int("bytes", len(dump)))

	if err := rotateBackups(ctx, client, cfg, logging); err != nil {
		logging.Fatal("Backup rotation failed", zap.Error(err))
	}
	logging.Info("Backup finished")
}

func backupKey(t time.Time) string {
	return fmt.Sprintf("%sbackup-%s.sql.gz", backupPrefix, t.UTC().Format("2006-01-02T15-04-05Z"))
}

func createDump(ctx context.Context, cfg *config.Config) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "pg_dump",
		"-h", cfg.DBHost,
		"-p", fmt.Sprint(cfg.DBPort),
		"-U", cfg.DBUser,
		"-d", cfg.DBName,
		"-w", // password comes from PGPASSWORD
	)
	cmd.Env = append(os.Environ(), "PGPASSWORD="+cfg.DBPassword)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	gzipWriter := gzip.NewWriter(&buf)
	if _, err := io.Copy(gzipWriter, stdout); err != nil {
		return nil, err
	}
	if err := gzipWriter.Close(); err != nil {
		return nil, err
	}
	if err := cmd.Wait(); err != nil {
		return nil, fmt.Errorf("pg_dump: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return buf.Bytes(), nil
}

// expiredBackups returns the keys of all backups beyond the newest keep.
func expiredBackups(objects []types.Object, keep int) []string {
	var backups []types.Object
	for _, obj := range objects {
		if obj.Key != nil && obj.LastModified != nil && strings.HasPrefix(*obj.Key, backupPrefix) {
			backups = append(backups, obj)
		}
	}
	if len(backups) <= keep {
		return nil
	}
	sort.Slice(backups, func(i, j int) bool {
		return backups[i].LastModified.After(*backups[j].LastModified)
	})
	keys := make([]string, 0, len(backups)-keep)
	for _, obj := range backups[keep:] {
		keys = append(keys, *obj.Key)
	}
	return keys
}

func rotateBackups(ctx context.Context, client *s3.Client, cfg BackupConfig, logging *zap.Logger) error {
	var objects []types.Object
	paginator := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{
		Bucket: aws.String(cfg.Bucket),
		Prefix: aws.String(backupPrefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return err
		}
		objects = append(objects, page.Contents...)
	}

	expired := expiredBackups(objects, cfg.Keep)
	if len(expired) == 0 {
		logging.Info("No rotation needed", zap.Int("backups", len(objects)), zap.Int("keep", cfg.Keep))
		return nil
	}
	for _, key := range expired {
		logging.Info("Deleting old backup", zap.String("key", key))
		_, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(cfg.Bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			logging.Warn("Failed to delete backup", zap.String("key", key), zap.Error(err))
		}
	}
	return nil
}
