package hosting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultAPIURL     = "https://api.github.com"
	DefaultUploadsURL = "https://uploads.github.com"
	DefaultReleaseTag = "question-images"
)

var ErrReleaseNotFound = errors.New("release not found")

// APIError is a non-2xx answer from the release API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("release api status %d: %s", e.StatusCode, e.Message)
}

type Config struct {
	Token      string
	Repository string // owner/name
	// ReleaseID pins uploads to one release and takes precedence over
	// ReleaseTag.
	ReleaseID int64
	// ReleaseTag names the release that receives the images. The latest
	// release is used only when it carries this tag. Otherwise the release
	// is looked up by tag and created when missing.
	ReleaseTag string
	APIURL     string
	UploadsURL string
}

type Release struct {
	ID      int64  `json:"id"`
	TagName string `json:"tag_name"`
	Name    string `json:"name"`
}

type Asset struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

// Client uploads rendered images as release assets. The target release is
// resolved once and reused until an upload reports it gone.
type Client struct {
	httpClient *http.Client
	cfg        Config

	mu      sync.Mutex
	release *Release
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("GITHUB_TOKEN is required for image hosting")
	}
	parts := strings.Split(cfg.Repository, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("invalid GITHUB_REPOSITORY %q: expected owner/name", cfg.Repository)
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.UploadsURL == "" {
		cfg.UploadsURL = DefaultUploadsURL
	}
	if cfg.ReleaseTag == "" {
		cfg.ReleaseTag = DefaultReleaseTag
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	cfg.UploadsURL = strings.TrimRight(cfg.UploadsURL, "/")

	return &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		cfg:        cfg,
	}, nil
}

// Upload publishes the file and returns its public download URL.
func (c *Client) Upload(ctx context.Context, path string) (string, error) {
	release, err := c.ensureRelease(ctx)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read artifact: %w", err)
	}

	asset, err := c.UploadAsset(ctx, release.ID, assetName(path), data)
	if errors.Is(err, ErrReleaseNotFound) {
		c.forgetRelease(release.ID)
		if release, err = c.ensureRelease(ctx); err != nil {
			return "", err
		}
		asset, err = c.UploadAsset(ctx, release.ID, assetName(path), data)
	}
	if err != nil {
		return "", err
	}
	return asset.BrowserDownloadURL, nil
}

// forgetRelease drops the cached release if it is still the one with id.
func (c *Client) forgetRelease(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.release != nil && c.release.ID == id {
		c.release = nil
	}
}

func (c *Client) ensureRelease(ctx context.Context) (Release, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.release != nil {
		return *c.release, nil
	}

	var (
		release Release
		err     error
	)
	if c.cfg.ReleaseID > 0 {
		release, err = c.GetRelease(ctx, c.cfg.ReleaseID)
	} else {
		release, err = c.taggedRelease(ctx)
	}
	if err != nil {
		return Release{}, fmt.Errorf("resolve release: %w", err)
	}

	c.release = &release
	return release, nil
}

// taggedRelease prefers the latest release when it carries the configured
// tag, then falls back to a lookup by tag and finally creates the release.
func (c *Client) taggedRelease(ctx context.Context) (Release, error) {
	tag := c.cfg.ReleaseTag
	latest, err := c.LatestRelease(ctx)
	if err == nil && latest.TagName == tag {
		return latest, nil
	}
	if err != nil && !errors.Is(err, ErrReleaseNotFound) {
		return Release{}, err
	}

	release, err := c.ReleaseByTag(ctx, tag)
	if errors.Is(err, ErrReleaseNotFound) {
		return c.CreateRelease(ctx, tag, "Question images")
	}
	return release, err
}

func (c *Client) CreateRelease(ctx context.Context, tag, name string) (Release, error) {
	payload := map[string]any{
		"tag_name":   tag,
		"name":       name,
		"body":       "Rendered practice question images.",
		"draft":      false,
		"prerelease": false,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Release{}, fmt.Errorf("marshal release payload: %w", err)
	}

	var out Release
	err = c.do(ctx, http.MethodPost, c.repoURL("/releases"), "application/json", bytes.NewReader(body), &out)
	return out, err
}

func (c *Client) LatestRelease(ctx context.Context) (Release, error) {
	var out Release
	err := c.do(ctx, http.MethodGet, c.repoURL("/releases/latest"), "", nil, &out)
	return out, err
}

func (c *Client) ReleaseByTag(ctx context.Context, tag string) (Release, error) {
	var out Release
	err := c.do(ctx, http.MethodGet, c.repoURL("/releases/tags/"+url.PathEscape(tag)), "", nil, &out)
	return out, err
}

func (c *Client) GetRelease(ctx context.Context, id int64) (Release, error) {
	var out Release
	err := c.do(ctx, http.MethodGet, c.repoURL("/releases/"+strconv.FormatInt(id, 10)), "", nil, &out)
	return out, err
}

func (c *Client) UploadAsset(ctx context.Context, releaseID int64, name string, data []byte) (Asset, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/releases/%d/assets?name=%s",
		c.cfg.UploadsURL, c.cfg.Repository, releaseID, url.QueryEscape(name))

	var out Asset
	if err := c.do(ctx, http.MethodPost, endpoint, contentType(name), bytes.NewReader(data), &out); err != nil {
		return Asset{}, fmt.Errorf("upload asset %s: %w", name, err)
	}
	if out.BrowserDownloadURL == "" {
		return Asset{}, fmt.Errorf("upload asset %s: response has no download url", name)
	}
	return out, nil
}

func (c *Client) repoURL(path string) string {
	return c.cfg.APIURL + "/repos/" + c.cfg.Repository + path
}

func (c *Client) do(ctx context.Context, method, endpoint, ctype string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if ctype != "" {
		req.Header.Set("Content-Type", ctype)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("release api request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read release api response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrReleaseNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Message string `json:"message"`
		}
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Message != "" {
			msg = apiErr.Message
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("unmarshal release api response: %w", err)
	}
	return nil
}

// assetName keeps the rendered file name recognisable and adds a random
// suffix, since asset names must be unique within a release.
func assetName(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return fmt.Sprintf("%s_%s%s", stem, uuid.NewString()[:8], ext)
}

func contentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}
