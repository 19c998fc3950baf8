package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"netcop-updater/internal/models"

	"go.uber.org/zap"
)

const (
	DefaultTimeout   = 60 * time.Second
	DefaultUserAgent = "netcop-updater"
)

// Config points the client at the signature repository
type Config struct {
	VersionURL  string        `yaml:"version_url"`
	DownloadURL string        `yaml:"download_url"`
	Timeout     time.Duration `yaml:"timeout"`
	UserAgent   string        `yaml:"user_agent"`
}

// StatusError is returned when the repository answers with a non 2xx status
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("signature repository %s answered %d", e.URL, e.StatusCode)
}

type versionResponse struct {
	Version *string `json:"version"`
}

type downloadResponse struct {
	Classes []models.ClassUpdate `json:"clases"`
}

// Client fetches version information and catalogs from the signature repository
type Client struct {
	http   *http.Client
	config Config
	logger *zap.Logger
}

// New creates a new signature repository client
func New(config Config, logger *zap.Logger) *Client {
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.UserAgent == "" {
		config.UserAgent = DefaultUserAgent
	}

	return &Client{
		http:   &http.Client{Timeout: config.Timeout},
		config: config,
		logger: logger,
	}
}

// Version returns the latest catalog version published by the repository
func (c *Client) Version(ctx context.Context) (string, error) {
	var resp versionResponse
	if err := c.get(ctx, c.config.VersionURL, &resp); err != nil {
		return "", err
	}
	if resp.Version == nil {
		return "", fmt.Errorf("signature repository %s: response without version", c.config.VersionURL)
	}
	return *resp.Version, nil
}

// Download fetches the full catalog of traffic classes
func (c *Client) Download(ctx context.Context) ([]models.ClassUpdate, error) {
	c.logger.Debug("Downloading latest catalog", zap.String("url", c.config.DownloadURL))

	var resp downloadResponse
	if err := c.get(ctx, c.config.DownloadURL, &resp); err != nil {
		return nil, err
	}

	c.logger.Debug("Catalog downloaded", zap.Int("classes", len(resp.Classes)))
	return resp.Classes, nil
}

func (c *Client) get(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", url, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("Signature repository unavailable", zap.String("url", url), zap.Error(err))
		return fmt.Errorf("failed to reach %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, resp.Body)
		c.logger.Error("Signature repository unavailable",
			zap.String("url", url),
			zap.Int("status", resp.StatusCode))
		return &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("empty response from %s", url)
		}
		return fmt.Errorf("failed to decode response from %s: %w", url, err)
	}
	return nil
}
