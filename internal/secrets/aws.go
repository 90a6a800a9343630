package secrets

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"go.uber.org/zap"
)

// SecretsManagerAPI is the part of the Secrets Manager client used here.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSProvider reads secrets from AWS Secrets Manager.  Names may be plain
// secret names or full ARNs.
type AWSProvider struct {
	client SecretsManagerAPI
	logger *zap.Logger
}

// NewAWSProvider loads the default AWS credential chain (IAM role in
// production, shared profile locally).  region may be empty to use the
// chain's region.
func NewAWSProvider(ctx context.Context, region string, logger *zap.Logger) (*AWSProvider, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewAWSProviderWithClient(secretsmanager.NewFromConfig(cfg), logger), nil
}

// NewAWSProviderWithClient wraps an existing client.
func NewAWSProviderWithClient(client SecretsManagerAPI, logger *zap.Logger) *AWSProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AWSProvider{client: client, logger: logger.Named("secrets")}
}

func (p *AWSProvider) GetSecret(ctx context.Context, name string) (string, error) {
	start := time.Now()
	out, err := p.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		p.logger.Error("failed to retrieve secret", zap.String("name", name), zap.Error(err))
		return "", fmt.Errorf("get secret %s: %w", name, err)
	}
	value := aws.ToString(out.SecretString)
	if value == "" {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	p.logger.Info("secret retrieved",
		zap.String("name", name),
		zap.Duration("elapsed", time.Since(start)),
	)
	return value, nil
}
