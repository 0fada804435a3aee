package backup

import (
	"context"
	"fmt"
)

// NewMirror creates the mirror selected by config. It returns a nil Mirror
// when mirroring is disabled.
func NewMirror(ctx context.Context, config MirrorConfig) (Mirror, error) {
	if err := config.Validate(); err != nil {
		return nil, NewConfigurationError("invalid mirror configuration", err)
	}

	switch config.Provider {
	case "", MirrorProviderNone:
		return nil, nil
	case MirrorProviderS3:
		return NewS3Mirror(config.S3)
	case MirrorProviderGCS:
		return NewGCSMirror(ctx, config.GCS)
	case MirrorProviderAzure:
		return NewAzureMirror(config.Azure)
	default:
		return nil, NewConfigurationError(fmt.Sprintf("unsupported mirror provider: %s", config.Provider), nil)
	}
}

// SupportedMirrorProviders returns the provider names NewMirror accepts
func SupportedMirrorProviders() []MirrorProvider {
	return []MirrorProvider{
		MirrorProviderNone,
		MirrorProviderS3,
		MirrorProviderGCS,
		MirrorProviderAzure,
	}
}
