package cloud

import (
	"context"
	"fmt"

	"github.com/hemantobora/proxygen/internal/models"
)

// Option is a functional option for querier construction.
type Option func(*factoryOptions)

type factoryOptions struct {
	awsProfile string
}

// WithAWSProfile selects the AWS shared-config profile.
func WithAWSProfile(profile string) Option {
	return func(o *factoryOptions) {
		o.awsProfile = profile
	}
}

// ForProvider returns the live-state querier for a provider.
func ForProvider(ctx context.Context, provider models.Provider, options ...Option) (Querier, error) {
	opts := &factoryOptions{}
	for _, opt := range options {
		opt(opts)
	}

	switch provider {
	case models.ProviderAWS:
		return NewAWSQuerier(ctx, opts.awsProfile)
	case models.ProviderAzure:
		return NewAzureQuerier(), nil
	case models.ProviderDigitalOcean:
		return NewDigitalOceanQuerier(), nil
	case models.ProviderHetzner:
		return NewHetznerQuerier(), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}
