package backup

import (
	"context"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSMirror copies artifacts to a Google Cloud Storage bucket
type GCSMirror struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSMirror creates a mirror for the configured bucket. Without a
// credentials file the default application credentials are used.
func NewGCSMirror(ctx context.Context, config GCSConfig) (*GCSMirror, error) {
	mc := MirrorConfig{Provider: MirrorProviderGCS, GCS: config}
	if err := mc.Validate(); err != nil {
		return nil, NewConfigurationError("invalid GCS mirror configuration", err)
	}

	var opts []option.ClientOption
	if config.CredentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(config.CredentialsPath))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, NewStorageError("failed to create GCS client", err)
	}

	return &GCSMirror{
		client: client,
		bucket: config.Bucket,
		prefix: objectPrefix(config.Prefix),
	}, nil
}

// Provider implements Mirror
func (m *GCSMirror) Provider() string {
	return string(MirrorProviderGCS)
}

// Upload stores data under the artifact name
func (m *GCSMirror) Upload(ctx context.Context, name string, data []byte) error {
	if err := ValidateArtifactName(name); err != nil {
		return err
	}

	writer := m.client.Bucket(m.bucket).Object(m.prefix + name).NewWriter(ctx)
	writer.ContentType = "application/octet-stream"

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return NewStorageError("failed to write backup to GCS", err).WithContext("name", name)
	}
	if err := writer.Close(); err != nil {
		return NewStorageError("failed to finalize backup upload to GCS", err).WithContext("name", name)
	}
	return nil
}

// Delete removes the mirrored copy of an artifact
func (m *GCSMirror) Delete(ctx context.Context, name string) error {
	if err := ValidateArtifactName(name); err != nil {
		return err
	}

	if err := m.client.Bucket(m.bucket).Object(m.prefix + name).Delete(ctx); err != nil {
		if err == storage.ErrObjectNotExist {
			return nil
		}
		return NewStorageError("failed to delete backup from GCS", err).WithContext("name", name)
	}
	return nil
}

// Close releases the underlying client
func (m *GCSMirror) Close() error {
	return m.client.Close()
}
