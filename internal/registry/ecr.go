// Package registry manages the ECR repository an environment deploys
// from: repository setup, image lifecycle, and docker build/tag/push.
package registry

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	ecrtypes "github.com/aws/aws-sdk-go-v2/service/ecr/types"
	"github.com/docker/docker/api/types/registry"
	"github.com/eskildsen/stevedore/internal/awsutil"
)

// ECRAPI is the client subset the manager uses.
type ECRAPI interface {
	CreateRepository(ctx context.Context, params *ecr.CreateRepositoryInput, optFns ...func(*ecr.Options)) (*ecr.CreateRepositoryOutput, error)
	DescribeRepositories(ctx context.Context, params *ecr.DescribeRepositoriesInput, optFns ...func(*ecr.Options)) (*ecr.DescribeRepositoriesOutput, error)
	PutLifecyclePolicy(ctx context.Context, params *ecr.PutLifecyclePolicyInput, optFns ...func(*ecr.Options)) (*ecr.PutLifecyclePolicyOutput, error)
	GetAuthorizationToken(ctx context.Context, params *ecr.GetAuthorizationTokenInput, optFns ...func(*ecr.Options)) (*ecr.GetAuthorizationTokenOutput, error)
	DescribeImages(ctx context.Context, params *ecr.DescribeImagesInput, optFns ...func(*ecr.Options)) (*ecr.DescribeImagesOutput, error)
	BatchDeleteImage(ctx context.Context, params *ecr.BatchDeleteImageInput, optFns ...func(*ecr.Options)) (*ecr.BatchDeleteImageOutput, error)
}

type Manager struct {
	client ECRAPI
	logger *slog.Logger
}

func NewManager(client ECRAPI, logger *slog.Logger) *Manager {
	return &Manager{client: client, logger: logger}
}

// EnsureRepository creates the repository if it does not already exist
// and returns its URI. Safe to call repeatedly.
func (m *Manager) EnsureRepository(ctx context.Context, name string, imagesToKeep int) (string, error) {
	out, err := m.client.CreateRepository(ctx, &ecr.CreateRepositoryInput{
		RepositoryName: aws.String(name),
		ImageScanningConfiguration: &ecrtypes.ImageScanningConfiguration{
			ScanOnPush: true,
		},
		ImageTagMutability: ecrtypes.ImageTagMutabilityImmutable,
	})
	var uri string
	switch {
	case err == nil:
		m.logger.Info("Created repository", "repository", name)
		uri = aws.ToString(out.Repository.RepositoryUri)
	case awsutil.IsAlreadyExists(err):
		described, derr := m.client.DescribeRepositories(ctx, &ecr.DescribeRepositoriesInput{
			RepositoryNames: []string{name},
		})
		if derr != nil {
			return "", fmt.Errorf("failed to describe repository %s: %w", name, derr)
		}
		if len(described.Repositories) == 0 {
			return "", fmt.Errorf("repository %s not found after create conflict", name)
		}
		uri = aws.ToString(described.Repositories[0].RepositoryUri)
	default:
		return "", fmt.Errorf("failed to create repository %s: %w", name, err)
	}

	if _, err := m.client.PutLifecyclePolicy(ctx, &ecr.PutLifecyclePolicyInput{
		RepositoryName:      aws.String(name),
		LifecyclePolicyText: aws.String(lifecyclePolicy(imagesToKeep)),
	}); err != nil {
		return "", fmt.Errorf("failed to set lifecycle policy on %s: %w", name, err)
	}
	return uri, nil
}

// RepositoryURI looks up the URI of an existing repository.
func (m *Manager) RepositoryURI(ctx context.Context, name string) (string, error) {
	out, err := m.client.DescribeRepositories(ctx, &ecr.DescribeRepositoriesInput{
		RepositoryNames: []string{name},
	})
	if err != nil {
		return "", fmt.Errorf("failed to describe repository %s: %w", name, err)
	}
	if len(out.Repositories) == 0 {
		return "", fmt.Errorf("repository %s not found", name)
	}
	return aws.ToString(out.Repositories[0].RepositoryUri), nil
}

// AuthConfig fetches a registry token and returns the encoded auth
// string docker push expects, plus the registry endpoint.
func (m *Manager) AuthConfig(ctx context.Context) (string, string, error) {
	out, err := m.client.GetAuthorizationToken(ctx, &ecr.GetAuthorizationTokenInput{})
	if err != nil {
		return "", "", fmt.Errorf("failed to get authorization token: %w", err)
	}
	if len(out.AuthorizationData) == 0 {
		return "", "", fmt.Errorf("no authorization data returned")
	}
	data := out.AuthorizationData[0]
	endpoint := strings.TrimPrefix(aws.ToString(data.ProxyEndpoint), "https://")
	username, password, err := decodeAuthorizationToken(aws.ToString(data.AuthorizationToken))
	if err != nil {
		return "", "", err
	}
	authStr, err := registry.EncodeAuthConfig(registry.AuthConfig{
		Username:      username,
		Password:      password,
		ServerAddress: endpoint,
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to encode registry auth: %w", err)
	}
	return authStr, endpoint, nil
}

// PruneImages deletes tagged images beyond the newest keep, by push
// time. Untagged images are left to the lifecycle policy.
func (m *Manager) PruneImages(ctx context.Context, name string, keep int) (int, error) {
	var details []ecrtypes.ImageDetail
	var nextToken *string
	for {
		out, err := m.client.DescribeImages(ctx, &ecr.DescribeImagesInput{
			RepositoryName: aws.String(name),
			NextToken:      nextToken,
		})
		if err != nil {
			if awsutil.IsNotFound(err) {
				return 0, nil
			}
			return 0, fmt.Errorf("failed to list images in %s: %w", name, err)
		}
		details = append(details, out.ImageDetails...)
		if out.NextToken == nil {
			break
		}
		nextToken = out.NextToken
	}

	toDelete := selectImagesToPrune(details, keep)
	if len(toDelete) == 0 {
		return 0, nil
	}

	m.logger.Info("Pruning old images", "repository", name, "count", len(toDelete))
	_, err := m.client.BatchDeleteImage(ctx, &ecr.BatchDeleteImageInput{
		RepositoryName: aws.String(name),
		ImageIds:       toDelete,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete images from %s: %w", name, err)
	}
	return len(toDelete), nil
}

// selectImagesToPrune returns identifiers for tagged images beyond the
// newest keep, ordered oldest first.
func selectImagesToPrune(details []ecrtypes.ImageDetail, keep int) []ecrtypes.ImageIdentifier {
	tagged := make([]ecrtypes.ImageDetail, 0, len(details))
	for _, detail := range details {
		if len(detail.ImageTags) > 0 {
			tagged = append(tagged, detail)
		}
	}
	sort.Slice(tagged, func(i, j int) bool {
		ti, tj := tagged[i].ImagePushedAt, tagged[j].ImagePushedAt
		if ti == nil || tj == nil {
			return tj != nil
		}
		return ti.Before(*tj)
	})
	if keep < 0 {
		keep = 0
	}
	if len(tagged) <= keep {
		return nil
	}
	old := tagged[:len(tagged)-keep]
	ids := make([]ecrtypes.ImageIdentifier, 0, len(old))
	for _, detail := range old {
		ids = append(ids, ecrtypes.ImageIdentifier{ImageDigest: detail.ImageDigest})
	}
	return ids
}

func decodeAuthorizationToken(token string) (string, string, error) {
	decoded, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", "", fmt.Errorf("failed to decode authorization token: %w", err)
	}
	username, password, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return "", "", fmt.Errorf("malformed authorization token")
	}
	return username, password, nil
}

func lifecyclePolicy(imagesToKeep int) string {
	return fmt.Sprintf(`{
  "rules": [
    {
      "rulePriority": 1,
      "description": "expire untagged images",
      "selection": {
        "tagStatus": "untagged",
        "countType": "sinceImagePushed",
        "countUnit": "days",
        "countNumber": 1
      },
      "action": {"type": "expire"}
    },
    {
      "rulePriority": 2,
      "description": "keep the newest %d tagged images",
      "selection": {
        "tagStatus": "any",
        "countType": "imageCountMoreThan",
        "countNumber": %d
      },
      "action": {"type": "expire"}
    }
  ]
}`, imagesToKeep, imagesToKeep)
}
