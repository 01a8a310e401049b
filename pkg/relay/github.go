// Package relay triggers the recording workflow on GitHub Actions, either on
// an authenticated HTTP request or from an hourly schedule.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/moumouls/aero-4g-cam/pkg/redactor"
)

// Workflow coordinates.
const (
	Owner      = "Moumouls"
	Repo       = "aero-4g-cam"
	WorkflowID = "generate-video.yml"
	Branch     = "master"

	DefaultAPIEndpoint = "https://api.github.com"
	apiVersion         = "2022-11-28"
	userAgent          = "aero-4g-cam-relay"
	maxDetails         = 2048
)

var errMissingToken = errors.New("missing GITHUB_TOKEN environment variable")

// UpstreamError is a non-204 answer from the GitHub API.
type UpstreamError struct {
	Status  int
	Details string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("GitHub API returned %d: %s", e.Status, redactor.Truncate(e.Details, 200))
}

// GitHubConfig configures the workflow dispatcher.
type GitHubConfig struct {
	Token    redactor.String
	Endpoint string // defaults to DefaultAPIEndpoint
	Client   *http.Client
}

// GitHub dispatches workflow_dispatch events.
type GitHub struct {
	token    redactor.String
	endpoint string
	client   *http.Client
	log      *zap.Logger
}

// NewGitHub creates a dispatcher.
func NewGitHub(cfg GitHubConfig, log *zap.Logger) *GitHub {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultAPIEndpoint
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &GitHub{
		token:    cfg.Token,
		endpoint: strings.TrimSuffix(cfg.Endpoint, "/"),
		client:   cfg.Client,
		log:      log,
	}
}

// DispatchURL is the workflow dispatch endpoint.
func (g *GitHub) DispatchURL() string {
	return fmt.Sprintf("%s/repos/%s/%s/actions/workflows/%s/dispatches", g.endpoint, Owner, Repo, WorkflowID)
}

// Dispatch asks GitHub to run the workflow on Branch.
func (g *GitHub) Dispatch(ctx context.Context) error {
	if g.token == "" {
		return errMissingToken
	}

	body, err := json.Marshal(map[string]string{"ref": Branch})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.DispatchURL(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+g.token.Reveal())
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		return errors.Wrap(redactor.ScrubError(err, g.token.Reveal()), "dispatch workflow")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		g.log.Info("Workflow dispatched", zap.String("workflow", WorkflowID), zap.String("branch", Branch))
		return nil
	}

	details, _ := io.ReadAll(io.LimitReader(resp.Body, maxDetails))
	g.log.Warn("Workflow dispatch rejected", zap.Int("status", resp.StatusCode))
	return &UpstreamError{Status: resp.StatusCode, Details: string(details)}
}
