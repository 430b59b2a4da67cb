package registry

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/moby/term"
)

// BuildSpec describes a local docker build.
type BuildSpec struct {
	ContextDir string
	Dockerfile string
	BuildArgs  map[string]string
}

// NewDockerClient connects to the local docker daemon.
func NewDockerClient() (*client.Client, error) {
	dockerClient, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return dockerClient, nil
}

// BuildImage builds a local image from the spec, tagged with imageRef.
func BuildImage(ctx context.Context, dockerClient *client.Client, imageRef string, spec BuildSpec) error {
	contextDir := spec.ContextDir
	if contextDir == "" {
		contextDir = "."
	}
	dockerfile := spec.Dockerfile
	if dockerfile == "" {
		dockerfile = "Dockerfile"
	}

	buildOpts := types.ImageBuildOptions{
		Tags:       []string{imageRef},
		Dockerfile: filepath.Base(dockerfile),
		BuildArgs:  make(map[string]*string),
		Remove:     true,
	}
	for k, v := range spec.BuildArgs {
		value := v
		buildOpts.BuildArgs[k] = &value
	}

	buildContextTar, err := archive.TarWithOptions(contextDir, &archive.TarOptions{
		ExcludePatterns: dockerIgnorePatterns(contextDir),
	})
	if err != nil {
		return fmt.Errorf("failed to create build context archive from %s: %w", contextDir, err)
	}
	defer buildContextTar.Close()

	resp, err := dockerClient.ImageBuild(ctx, buildContextTar, buildOpts)
	if err != nil {
		return fmt.Errorf("failed to build image %s: %w", imageRef, err)
	}
	defer resp.Body.Close()

	return streamDockerOutput(resp.Body)
}

// TagImage applies remoteRef to the locally built localRef.
func TagImage(ctx context.Context, dockerClient *client.Client, localRef, remoteRef string) error {
	if err := dockerClient.ImageTag(ctx, localRef, remoteRef); err != nil {
		return fmt.Errorf("failed to tag %s as %s: %w", localRef, remoteRef, err)
	}
	return nil
}

// PushImage pushes imageRef using the encoded registry auth string.
func PushImage(ctx context.Context, dockerClient *client.Client, imageRef, authStr string) error {
	resp, err := dockerClient.ImagePush(ctx, imageRef, image.PushOptions{
		RegistryAuth: authStr,
	})
	if err != nil {
		return fmt.Errorf("failed to push image %s: %w", imageRef, err)
	}
	defer resp.Close()

	return streamDockerOutput(resp)
}

// streamDockerOutput renders a docker API json stream like the CLI
// does, surfacing daemon-reported errors.
func streamDockerOutput(r io.Reader) error {
	termFd, isTerm := term.GetFdInfo(os.Stdout)
	err := jsonmessage.DisplayJSONMessagesStream(r, os.Stdout, termFd, isTerm, nil)
	if err != nil {
		if jsonErr, ok := err.(*jsonmessage.JSONError); ok {
			return fmt.Errorf("docker daemon reported: %s", jsonErr.Message)
		}
		return fmt.Errorf("failed to stream docker output: %w", err)
	}
	return nil
}

func dockerIgnorePatterns(contextDir string) []string {
	patterns := []string{}
	data, err := os.ReadFile(filepath.Join(contextDir, ".dockerignore"))
	if err != nil {
		return patterns
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			patterns = append(patterns, line)
		}
	}
	return patterns
}
