package state

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// SnapshotStore pushes and pulls registry snapshots to an S3 bucket, as an
// off-host safety net on top of the local .backup copies. It never
// participates in normal reads or writes.
type SnapshotStore struct {
	client *s3.Client
	bucket string
}

// NewSnapshotStore creates a snapshot store for the given bucket. An empty
// profile uses the default AWS credential chain.
func NewSnapshotStore(ctx context.Context, bucket, profile string) (*SnapshotStore, error) {
	var cfg aws.Config
	var err error

	if profile != "" {
		cfg, err = awsconfig.LoadDefaultConfig(ctx, awsconfig.WithSharedConfigProfile(profile))
	} else {
		cfg, err = awsconfig.LoadDefaultConfig(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	return &SnapshotStore{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
	}, nil
}

// snapshotFiles are the state documents included in every snapshot.
var snapshotFiles = []string{registryFile, chainsFile}

// Push uploads the current state documents. Each push writes both a
// "current" object and a timestamped copy for point-in-time recovery.
func (b *SnapshotStore) Push(ctx context.Context, stateDir string) error {
	stamp := time.Now().UTC().Format("20060102-150405")
	for _, name := range snapshotFiles {
		data, err := os.ReadFile(filepath.Join(stateDir, name))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", name, err)
		}
		if err := b.putObject(ctx, "snapshots/current/"+name, data); err != nil {
			return fmt.Errorf("failed to upload %s: %w", name, err)
		}
		if err := b.putObject(ctx, "snapshots/"+stamp+"/"+name, data); err != nil {
			return fmt.Errorf("failed to upload timestamped copy of %s: %w", name, err)
		}
	}
	return nil
}

// Pull downloads the current snapshot into stateDir. Existing local documents
// are preserved as .backup copies before being replaced.
func (b *SnapshotStore) Pull(ctx context.Context, stateDir string) error {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	for _, name := range snapshotFiles {
		result, err := b.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String("snapshots/current/" + name),
		})
		if err != nil {
			return fmt.Errorf("failed to download %s: %w", name, err)
		}
		data, err := io.ReadAll(result.Body)
		result.Body.Close()
		if err != nil {
			return fmt.Errorf("failed to read %s from snapshot: %w", name, err)
		}

		local := filepath.Join(stateDir, name)
		if prev, err := os.ReadFile(local); err == nil {
			if err := os.WriteFile(local+".backup", prev, 0o644); err != nil {
				return fmt.Errorf("failed to back up %s before pull: %w", name, err)
			}
		}
		if err := os.WriteFile(local, data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}
	return nil
}

func (b *SnapshotStore) putObject(ctx context.Context, key string, data []byte) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(b.bucket),
		Key:                  aws.String(key),
		Body:                 bytes.NewReader(data),
		ContentType:          aws.String("application/json"),
		ServerSideEncryption: types.ServerSideEncryption("AES256"),
	})
	return err
}
