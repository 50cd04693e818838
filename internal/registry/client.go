// Package registry is the HTTP client for the package registry: index
// retrieval, archive download, publish and yank.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"resty.dev/v3"

	"github.com/Tanteli/imx-starknet/internal/ctxlog"
	"github.com/Tanteli/imx-starknet/internal/index"
	"github.com/Tanteli/imx-starknet/internal/manifest"
)

const (
	userAgent      = "imxpkg/0.1.0"
	defaultTimeout = 30 * time.Second
)

// apiError is the registry's JSON error envelope.
type apiError struct {
	Message string `json:"message"`
}

// Client talks to one registry. Create it with New and release the
// underlying transport with Close when done.
type Client struct {
	http *resty.Client
}

// New returns a client for the registry at baseURL.
func New(baseURL string) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(defaultTimeout).
			SetHeader("User-Agent", userAgent),
	}
}

// Close releases the client's idle connections.
func (c *Client) Close() error {
	return c.http.Close()
}

// Index fetches the full package index.
func (c *Client) Index(ctx context.Context) (*index.Index, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Fetching registry index.")

	var (
		ix     index.Index
		apiErr apiError
	)
	res, err := c.http.R().
		SetContext(ctx).
		SetResult(&ix).
		SetError(&apiErr).
		Get("/v1/index")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch registry index: %w", err)
	}
	if res.IsError() {
		return nil, statusError("fetch registry index", res.StatusCode(), apiErr)
	}

	logger.Debug("Registry index fetched.", "entries", len(ix.Entries))
	return &ix, nil
}

// Package fetches every indexed version of one package.
func (c *Client) Package(ctx context.Context, name string) ([]index.Entry, error) {
	var (
		entries []index.Entry
		apiErr  apiError
	)
	res, err := c.http.R().
		SetContext(ctx).
		SetResult(&entries).
		SetError(&apiErr).
		Get("/v1/packages/" + name)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch package %s: %w", name, err)
	}
	if res.IsError() {
		return nil, statusError(fmt.Sprintf("fetch package %s", name), res.StatusCode(), apiErr)
	}
	return entries, nil
}

// Download fetches the archive of one published package version.
func (c *Client) Download(ctx context.Context, name, ver string) ([]byte, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Downloading package archive.", "package", name, "version", ver)

	res, err := c.http.R().
		SetContext(ctx).
		Get(fmt.Sprintf("/v1/packages/%s/%s/archive", name, ver))
	if err != nil {
		return nil, fmt.Errorf("failed to download %s@%s: %w", name, ver, err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("failed to download %s@%s: registry returned %d", name, ver, res.StatusCode())
	}
	return res.Bytes(), nil
}

// Publish uploads a package version: its manifest and the tar.gz archive of
// its tree. The request carries a fresh idempotency key, so a retried
// publish of the same upload cannot create a second release.
func (c *Client) Publish(ctx context.Context, d *manifest.Descriptor, archive []byte) (*index.Entry, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Info("Publishing package.", "package", d.Name, "version", d.Version)

	manifestJSON, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest for publish: %w", err)
	}

	var (
		entry  index.Entry
		apiErr apiError
	)
	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("Idempotency-Key", uuid.NewString()).
		SetFormData(map[string]string{"manifest": string(manifestJSON)}).
		SetFileReader("archive", fmt.Sprintf("%s-%s.tar.gz", d.Name, d.Version), bytes.NewReader(archive)).
		SetResult(&entry).
		SetError(&apiErr).
		Post("/v1/packages")
	if err != nil {
		return nil, fmt.Errorf("failed to publish %s@%s: %w", d.Name, d.Version, err)
	}
	if res.IsError() {
		return nil, statusError(fmt.Sprintf("publish %s@%s", d.Name, d.Version), res.StatusCode(), apiErr)
	}
	return &entry, nil
}

// Yank marks a published version as withdrawn. The version stays resolvable
// for lock files that already pin it, but new resolutions skip it.
func (c *Client) Yank(ctx context.Context, name, ver string) error {
	logger := ctxlog.FromContext(ctx)
	logger.Info("Yanking package version.", "package", name, "version", ver)

	var apiErr apiError
	res, err := c.http.R().
		SetContext(ctx).
		SetError(&apiErr).
		Post(fmt.Sprintf("/v1/packages/%s/%s/yank", name, ver))
	if err != nil {
		return fmt.Errorf("failed to yank %s@%s: %w", name, ver, err)
	}
	if res.IsError() {
		return statusError(fmt.Sprintf("yank %s@%s", name, ver), res.StatusCode(), apiErr)
	}
	return nil
}

func statusError(op string, status int, apiErr apiError) error {
	if apiErr.Message != "" {
		return fmt.Errorf("failed to %s: registry returned %d: %s", op, status, apiErr.Message)
	}
	return fmt.Errorf("failed to %s: registry returned %d", op, status)
}
