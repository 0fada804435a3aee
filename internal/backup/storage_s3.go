package backup

import (
	"bytes"
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// S3Mirror copies artifacts to an S3 bucket
type S3Mirror struct {
	client s3iface.S3API
	bucket string
	prefix string
}

// NewS3Mirror creates a mirror for the configured bucket. A non-empty
// Endpoint targets an S3-compatible service with path-style addressing.
func NewS3Mirror(config S3Config) (*S3Mirror, error) {
	mc := MirrorConfig{Provider: MirrorProviderS3, S3: config}
	if err := mc.Validate(); err != nil {
		return nil, NewConfigurationError("invalid S3 mirror configuration", err)
	}

	awsConfig := &aws.Config{
		Region: aws.String(config.Region),
		Credentials: credentials.NewStaticCredentials(
			config.AccessKey,
			config.SecretKey,
			"",
		),
	}
	if config.Endpoint != "" {
		awsConfig.Endpoint = aws.String(config.Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, NewStorageError("failed to create AWS session", err)
	}

	return newS3MirrorWithClient(s3.New(sess), config.Bucket, config.Prefix), nil
}

func newS3MirrorWithClient(client s3iface.S3API, bucket, prefix string) *S3Mirror {
	return &S3Mirror{
		client: client,
		bucket: bucket,
		prefix: objectPrefix(prefix),
	}
}

// Provider implements Mirror
func (m *S3Mirror) Provider() string {
	return string(MirrorProviderS3)
}

// Upload stores data under the artifact name
func (m *S3Mirror) Upload(ctx context.Context, name string, data []byte) error {
	if err := ValidateArtifactName(name); err != nil {
		return err
	}

	_, err := m.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.bucket),
		Key:         aws.String(m.prefix + name),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return NewStorageError("failed to upload backup to S3", err).
			WithContext("bucket", m.bucket).
			WithContext("name", name)
	}
	return nil
}

// Delete removes the mirrored copy of an artifact
func (m *S3Mirror) Delete(ctx context.Context, name string) error {
	if err := ValidateArtifactName(name); err != nil {
		return err
	}

	_, err := m.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(m.prefix + name),
	})
	if err != nil {
		return NewStorageError("failed to delete backup from S3", err).
			WithContext("bucket", m.bucket).
			WithContext("name", name)
	}
	return nil
}
