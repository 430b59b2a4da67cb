package registry

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	ecrtypes "github.com/aws/aws-sdk-go-v2/service/ecr/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeECR struct {
	existing bool
	uri      string

	createCalls  int
	policyCalls  int
	deletedIDs   []ecrtypes.ImageIdentifier
	imageDetails []ecrtypes.ImageDetail
	authToken    string
}

func (f *fakeECR) CreateRepository(ctx context.Context, params *ecr.CreateRepositoryInput, optFns ...func(*ecr.Options)) (*ecr.CreateRepositoryOutput, error) {
	f.createCalls++
	if f.existing {
		return nil, &smithy.GenericAPIError{Code: "RepositoryAlreadyExistsException", Message: "already exists"}
	}
	return &ecr.CreateRepositoryOutput{
		Repository: &ecrtypes.Repository{RepositoryUri: aws.String(f.uri)},
	}, nil
}

func (f *fakeECR) DescribeRepositories(ctx context.Context, params *ecr.DescribeRepositoriesInput, optFns ...func(*ecr.Options)) (*ecr.DescribeRepositoriesOutput, error) {
	if !f.existing {
		return nil, &smithy.GenericAPIError{Code: "RepositoryNotFoundException", Message: "not found"}
	}
	return &ecr.DescribeRepositoriesOutput{
		Repositories: []ecrtypes.Repository{{RepositoryUri: aws.String(f.uri)}},
	}, nil
}

func (f *fakeECR) PutLifecyclePolicy(ctx context.Context, params *ecr.PutLifecyclePolicyInput, optFns ...func(*ecr.Options)) (*ecr.PutLifecyclePolicyOutput, error) {
	f.policyCalls++
	var doc map[string]any
	if err := json.Unmarshal([]byte(aws.ToString(params.LifecyclePolicyText)), &doc); err != nil {
		return nil, &smithy.GenericAPIError{Code: "InvalidParameterException", Message: err.Error()}
	}
	return &ecr.PutLifecyclePolicyOutput{}, nil
}

func (f *fakeECR) GetAuthorizationToken(ctx context.Context, params *ecr.GetAuthorizationTokenInput, optFns ...func(*ecr.Options)) (*ecr.GetAuthorizationTokenOutput, error) {
	return &ecr.GetAuthorizationTokenOutput{
		AuthorizationData: []ecrtypes.AuthorizationData{{
			AuthorizationToken: aws.String(f.authToken),
			ProxyEndpoint:      aws.String("https://123456789012.dkr.ecr.us-east-1.amazonaws.com"),
		}},
	}, nil
}

func (f *fakeECR) DescribeImages(ctx context.Context, params *ecr.DescribeImagesInput, optFns ...func(*ecr.Options)) (*ecr.DescribeImagesOutput, error) {
	return &ecr.DescribeImagesOutput{ImageDetails: f.imageDetails}, nil
}

func (f *fakeECR) BatchDeleteImage(ctx context.Context, params *ecr.BatchDeleteImageInput, optFns ...func(*ecr.Options)) (*ecr.BatchDeleteImageOutput, error) {
	f.deletedIDs = append(f.deletedIDs, params.ImageIds...)
	return &ecr.BatchDeleteImageOutput{}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEnsureRepositoryCreates(t *testing.T) {
	fake := &fakeECR{uri: "123456789012.dkr.ecr.us-east-1.amazonaws.com/app"}
	m := NewManager(fake, testLogger())

	uri, err := m.EnsureRepository(context.Background(), "app", 6)
	require.NoError(t, err)
	assert.Equal(t, fake.uri, uri)
	assert.Equal(t, 1, fake.createCalls)
	assert.Equal(t, 1, fake.policyCalls)
}

func TestEnsureRepositoryIsIdempotent(t *testing.T) {
	fake := &fakeECR{existing: true, uri: "123456789012.dkr.ecr.us-east-1.amazonaws.com/app"}
	m := NewManager(fake, testLogger())

	uri, err := m.EnsureRepository(context.Background(), "app", 6)
	require.NoError(t, err)
	assert.Equal(t, fake.uri, uri)
	assert.Equal(t, 1, fake.policyCalls)
}

func TestAuthConfigDecodesToken(t *testing.T) {
	token := base64.StdEncoding.EncodeToString([]byte("AWS:supersecret"))
	fake := &fakeECR{authToken: token}
	m := NewManager(fake, testLogger())

	authStr, endpoint, err := m.AuthConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "123456789012.dkr.ecr.us-east-1.amazonaws.com", endpoint)
	assert.NotEmpty(t, authStr)

	decoded, err := base64.URLEncoding.DecodeString(authStr)
	require.NoError(t, err)
	var auth struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	require.NoError(t, json.Unmarshal(decoded, &auth))
	assert.Equal(t, "AWS", auth.Username)
	assert.Equal(t, "supersecret", auth.Password)
}

func TestAuthConfigRejectsMalformedToken(t *testing.T) {
	fake := &fakeECR{authToken: base64.StdEncoding.EncodeToString([]byte("no-separator"))}
	m := NewManager(fake, testLogger())

	_, _, err := m.AuthConfig(context.Background())
	require.Error(t, err)
}

func TestPruneImagesKeepsNewest(t *testing.T) {
	now := time.Now()
	fake := &fakeECR{imageDetails: []ecrtypes.ImageDetail{
		imageDetail("sha256:aaa", now.Add(-3*time.Hour), "20240101010101"),
		imageDetail("sha256:bbb", now.Add(-2*time.Hour), "20240102020202"),
		imageDetail("sha256:ccc", now.Add(-1*time.Hour), "20240103030303"),
		{ImageDigest: aws.String("sha256:untagged"), ImagePushedAt: aws.Time(now.Add(-4 * time.Hour))},
	}}
	m := NewManager(fake, testLogger())

	deleted, err := m.PruneImages(context.Background(), "app", 2)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
	require.Len(t, fake.deletedIDs, 1)
	assert.Equal(t, "sha256:aaa", aws.ToString(fake.deletedIDs[0].ImageDigest))
}

func TestPruneImagesNothingToDo(t *testing.T) {
	fake := &fakeECR{imageDetails: []ecrtypes.ImageDetail{
		imageDetail("sha256:aaa", time.Now(), "20240101010101"),
	}}
	m := NewManager(fake, testLogger())

	deleted, err := m.PruneImages(context.Background(), "app", 6)
	require.NoError(t, err)
	assert.Zero(t, deleted)
	assert.Empty(t, fake.deletedIDs)
}

func TestSelectImagesToPruneOrdersOldestFirst(t *testing.T) {
	now := time.Now()
	details := []ecrtypes.ImageDetail{
		imageDetail("sha256:new", now, "c"),
		imageDetail("sha256:oldest", now.Add(-2*time.Hour), "a"),
		imageDetail("sha256:older", now.Add(-time.Hour), "b"),
	}
	ids := selectImagesToPrune(details, 1)
	require.Len(t, ids, 2)
	assert.Equal(t, "sha256:oldest", aws.ToString(ids[0].ImageDigest))
	assert.Equal(t, "sha256:older", aws.ToString(ids[1].ImageDigest))
}

func imageDetail(digest string, pushedAt time.Time, tag string) ecrtypes.ImageDetail {
	return ecrtypes.ImageDetail{
		ImageDigest:   aws.String(digest),
		ImagePushedAt: aws.Time(pushedAt),
		ImageTags:     []string{tag},
	}
}
