package backup

import (
	"context"
	"fmt"
	"net/url"

	"github.com/Azure/azure-storage-blob-go/azblob"
)

// AzureMirror copies artifacts to an Azure Blob Storage container
type AzureMirror struct {
	containerURL  azblob.ContainerURL
	containerName string
	prefix        string
}

// NewAzureMirror creates a mirror for the configured container
func NewAzureMirror(config AzureConfig) (*AzureMirror, error) {
	mc := MirrorConfig{Provider: MirrorProviderAzure, Azure: config}
	if err := mc.Validate(); err != nil {
		return nil, NewConfigurationError("invalid Azure mirror configuration", err)
	}

	credential, err := azblob.NewSharedKeyCredential(config.AccountName, config.AccountKey)
	if err != nil {
		return nil, NewStorageError("failed to create Azure credentials", err)
	}

	pipeline := azblob.NewPipeline(credential, azblob.PipelineOptions{})

	serviceURL, err := url.Parse(fmt.Sprintf("https://%s.blob.core.windows.net", config.AccountName))
	if err != nil {
		return nil, NewStorageError("failed to parse Azure service URL", err)
	}

	return &AzureMirror{
		containerURL:  azblob.NewServiceURL(*serviceURL, pipeline).NewContainerURL(config.ContainerName),
		containerName: config.ContainerName,
		prefix:        objectPrefix(config.Prefix),
	}, nil
}

// Provider implements Mirror
func (m *AzureMirror) Provider() string {
	return string(MirrorProviderAzure)
}

// Upload stores data under the artifact name
func (m *AzureMirror) Upload(ctx context.Context, name string, data []byte) error {
	if err := ValidateArtifactName(name); err != nil {
		return err
	}

	blobURL := m.containerURL.NewBlockBlobURL(m.prefix + name)
	_, err := azblob.UploadBufferToBlockBlob(ctx, data, blobURL, azblob.UploadToBlockBlobOptions{
		BlobHTTPHeaders: azblob.BlobHTTPHeaders{
			ContentType: "application/octet-stream",
		},
	})
	if err != nil {
		return NewStorageError("failed to upload backup to Azure", err).
			WithContext("container", m.containerName).
			WithContext("name", name)
	}
	return nil
}

// Delete removes the mirrored copy of an artifact
func (m *AzureMirror) Delete(ctx context.Context, name string) error {
	if err := ValidateArtifactName(name); err != nil {
		return err
	}

	blobURL := m.containerURL.NewBlockBlobURL(m.prefix + name)
	_, err := blobURL.Delete(ctx, azblob.DeleteSnapshotsOptionInclude, azblob.BlobAccessConditions{})
	if err != nil {
		if stgErr, ok := err.(azblob.StorageError); ok && stgErr.ServiceCode() == azblob.ServiceCodeBlobNotFound {
			return nil
		}
		return NewStorageError("failed to delete backup from Azure", err).
			WithContext("container", m.containerName).
			WithContext("name", name)
	}
	return nil
}
