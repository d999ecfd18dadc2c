// Package github submits snapshot payloads to the GitHub Dependency Graph
// Submission API, for both github.com and GitHub Enterprise Server hosts.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/shipgraph/shipgraph/pkg/errors"
	"github.com/shipgraph/shipgraph/pkg/snapshot"
)

const (
	apiVersion   = "2022-11-28"
	acceptHeader = "application/vnd.github+json"

	defaultTimeout = 30 * time.Second
)

// TokenFromEnv reads the API token from GITHUB_TOKEN, falling back to
// GH_TOKEN. Returns an error when neither is set.
func TokenFromEnv() (string, error) {
	for _, name := range []string{"GITHUB_TOKEN", "GH_TOKEN"} {
		if token := os.Getenv(name); token != "" {
			return token, nil
		}
	}
	return "", errors.New(errors.ErrCodeNoToken,
		"no API token found, set GITHUB_TOKEN or GH_TOKEN")
}

// APIBaseURL maps a server host to its REST API base URL. github.com uses
// the dedicated api subdomain; Enterprise Server hosts serve the API under
// /api/v3 on the same host.
func APIBaseURL(server string) string {
	if server == "github.com" || server == "api.github.com" {
		return "https://api.github.com"
	}
	return fmt.Sprintf("https://%s/api/v3", server)
}

// Client talks to one GitHub API host with one token.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the given server host. The host is a bare
// hostname such as "github.com" or "github.example.com".
func NewClient(server, token string) *Client {
	return &Client{
		token:      token,
		baseURL:    APIBaseURL(server),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// SubmissionURL returns the endpoint a snapshot for owner/repo posts to.
func (c *Client) SubmissionURL(owner, repo string) string {
	return fmt.Sprintf("%s/repos/%s/%s/dependency-graph/snapshots",
		c.baseURL, url.PathEscape(owner), url.PathEscape(repo))
}

// SubmitSnapshot posts the snapshot to the Dependency Graph Submission API.
// Any status outside the 2xx range is a transport error carrying the
// response body text.
func (c *Client) SubmitSnapshot(ctx context.Context, owner, repo string, snap *snapshot.Snapshot) error {
	body, err := json.Marshal(snap)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encoding snapshot payload")
	}

	url := c.SubmissionURL(owner, repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "building submission request")
	}
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(errors.ErrCodeTransport, err, "posting snapshot to %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return errors.New(errors.ErrCodeTransport,
			"submission to %s failed with status %d: %s",
			url, resp.StatusCode, bytes.TrimSpace(text))
	}
	return nil
}
