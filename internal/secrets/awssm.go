package secrets

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/eskildsen/stevedore/internal/awsutil"
	"github.com/eskildsen/stevedore/internal/config"
	"github.com/eskildsen/stevedore/internal/db"
)

// SecretsManagerAPI is the subset of the Secrets Manager client we use,
// extracted so tests can substitute a fake.
type SecretsManagerAPI interface {
	CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error)
	PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error)
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	ListSecrets(ctx context.Context, params *secretsmanager.ListSecretsInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.ListSecretsOutput, error)
	DeleteSecret(ctx context.Context, params *secretsmanager.DeleteSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DeleteSecretOutput, error)
}

// AWSStore stores secrets in AWS Secrets Manager.
type AWSStore struct {
	client SecretsManagerAPI
}

func NewAWSStore(client SecretsManagerAPI) *AWSStore {
	return &AWSStore{client: client}
}

func (s *AWSStore) Set(ctx context.Context, name, value string) error {
	_, err := s.client.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
		Name:         aws.String(name),
		SecretString: aws.String(value),
	})
	if err == nil {
		return nil
	}
	if !awsutil.IsAlreadyExists(err) {
		return fmt.Errorf("failed to create secret %s: %w", name, err)
	}
	_, err = s.client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:     aws.String(name),
		SecretString: aws.String(value),
	})
	if err != nil {
		return fmt.Errorf("failed to update secret %s: %w", name, err)
	}
	return nil
}

func (s *AWSStore) Get(ctx context.Context, name string) (string, error) {
	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		if awsutil.IsNotFound(err) {
			return "", fmt.Errorf("secret %s: %w", name, db.ErrNotFound)
		}
		return "", fmt.Errorf("failed to get secret %s: %w", name, err)
	}
	return aws.ToString(out.SecretString), nil
}

func (s *AWSStore) List(ctx context.Context) ([]Info, error) {
	var infos []Info
	var nextToken *string
	for {
		out, err := s.client.ListSecrets(ctx, &secretsmanager.ListSecretsInput{NextToken: nextToken})
		if err != nil {
			return nil, fmt.Errorf("failed to list secrets: %w", err)
		}
		for _, entry := range out.SecretList {
			info := Info{
				Name:     aws.ToString(entry.Name),
				Provider: config.SecretProviderAWS,
			}
			if entry.LastChangedDate != nil {
				info.UpdatedAt = *entry.LastChangedDate
			} else if entry.CreatedDate != nil {
				info.UpdatedAt = *entry.CreatedDate
			} else {
				info.UpdatedAt = time.Time{}
			}
			infos = append(infos, info)
		}
		if out.NextToken == nil {
			return infos, nil
		}
		nextToken = out.NextToken
	}
}

func (s *AWSStore) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteSecret(ctx, &secretsmanager.DeleteSecretInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		if awsutil.IsNotFound(err) {
			return fmt.Errorf("secret %s: %w", name, db.ErrNotFound)
		}
		return fmt.Errorf("failed to delete secret %s: %w", name, err)
	}
	return nil
}
