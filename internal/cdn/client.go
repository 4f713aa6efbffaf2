package cdn

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultBaseURL = "https://api.cloudflare.com/client/v4"

	// MaxPrefixesPerRequest is the provider's ceiling for one prefix purge.
	MaxPrefixesPerRequest = 30
	// MaxFilesPerRequest mirrors the prefix ceiling for file lists.
	MaxFilesPerRequest = 30

	DefaultTimeout         = 30 * time.Second
	DefaultCheckTimeout    = 15 * time.Second
	DefaultMaxResponseBody = 1 << 20
)

const (
	KindFiles      = "files"
	KindPrefixes   = "prefixes"
	KindEverything = "everything"
	KindZone       = "zone"
)

// Observer receives per-request measurements. *metrics.Metrics implements it.
type Observer interface {
	PurgeRequest(kind, outcome string, d time.Duration)
	ItemsPurged(kind string, n int)
}

type Config struct {
	BaseURL         string
	ZoneID          string
	APIToken        string
	Timeout         time.Duration
	CheckTimeout    time.Duration
	MaxFiles        int
	MaxPrefixes     int
	MaxResponseBody int64
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	log        zerolog.Logger
	obs        Observer

	mu     sync.RWMutex
	zoneID string
	token  string
}

func NewClient(cfg Config, log zerolog.Logger, obs Observer) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = DefaultCheckTimeout
	}
	if cfg.MaxFiles <= 0 || cfg.MaxFiles > MaxFilesPerRequest {
		cfg.MaxFiles = MaxFilesPerRequest
	}
	if cfg.MaxPrefixes <= 0 || cfg.MaxPrefixes > MaxPrefixesPerRequest {
		cfg.MaxPrefixes = MaxPrefixesPerRequest
	}
	if cfg.MaxResponseBody <= 0 {
		cfg.MaxResponseBody = DefaultMaxResponseBody
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log,
		obs:        obs,
		zoneID:     cfg.ZoneID,
		token:      cfg.APIToken,
	}
}

// SetCredentials swaps the zone and token used by subsequent requests.
func (c *Client) SetCredentials(zoneID, token string) {
	c.mu.Lock()
	c.zoneID = strings.TrimSpace(zoneID)
	c.token = strings.TrimSpace(token)
	c.mu.Unlock()
}

func (c *Client) credentials() (string, string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.zoneID == "" || c.token == "" {
		return "", "", ErrNotConfigured
	}
	return c.zoneID, c.token, nil
}

// MaxPrefixes is the effective per-request prefix ceiling.
func (c *Client) MaxPrefixes() int { return c.cfg.MaxPrefixes }

// PurgeFiles evicts exact URLs, chunked at the file ceiling. It stops at the
// first failed chunk.
func (c *Client) PurgeFiles(ctx context.Context, urls []string) error {
	return c.purgeChunked(ctx, KindFiles, urls, c.cfg.MaxFiles)
}

// PurgePrefixes evicts every URL under each host+path prefix, chunked at the
// prefix ceiling. It stops at the first failed chunk.
func (c *Client) PurgePrefixes(ctx context.Context, prefixes []string) error {
	return c.purgeChunked(ctx, KindPrefixes, prefixes, c.cfg.MaxPrefixes)
}

func (c *Client) PurgeEverything(ctx context.Context) error {
	return c.purge(ctx, KindEverything, map[string]any{"purge_everything": true}, 0)
}

type ZoneInfo struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// CheckZone validates credentials with a lightweight zone lookup.
func (c *Client) CheckZone(ctx context.Context) (ZoneInfo, error) {
	zoneID, token, err := c.credentials()
	if err != nil {
		return ZoneInfo{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.CheckTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.zoneURL(zoneID), nil)
	if err != nil {
		return ZoneInfo{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	var zone ZoneInfo
	start := time.Now()
	err = c.do(req, &zone)
	c.observe(KindZone, err, time.Since(start), 0)
	if err != nil {
		return ZoneInfo{}, err
	}
	return zone, nil
}

func (c *Client) purgeChunked(ctx context.Context, kind string, values []string, size int) error {
	if len(values) == 0 {
		return nil
	}
	for start := 0; start < len(values); start += size {
		end := start + size
		if end > len(values) {
			end = len(values)
		}
		chunk := values[start:end]
		if err := c.purge(ctx, kind, map[string]any{kind: chunk}, len(chunk)); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) purge(ctx context.Context, kind string, payload map[string]any, n int) error {
	zoneID, token, err := c.credentials()
	if err != nil {
		return err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("cdn: encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.zoneURL(zoneID)+"/purge_cache", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	err = c.do(req, nil)
	c.observe(kind, err, time.Since(start), n)
	if err != nil {
		c.log.Debug().Err(err).Str("kind", kind).Int("count", n).Msg("[cdn] purge request failed")
		return err
	}
	c.log.Debug().Str("kind", kind).Int("count", n).Msg("[cdn] purge request accepted")
	return nil
}

type envelope struct {
	Success bool `json:"success"`
	Errors  []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
	Result json.RawMessage `json:"result"`
}

func (c *Client) do(req *http.Request, result any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cdn: request: %w", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxResponseBody))
	if err != nil {
		return fmt.Errorf("cdn: read response: %w", err)
	}

	var env envelope
	decodeErr := json.Unmarshal(b, &env)

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Status: resp.StatusCode}
		if decodeErr == nil && len(env.Errors) > 0 {
			apiErr.Code = env.Errors[0].Code
			apiErr.Message = env.Errors[0].Message
		} else {
			apiErr.Message = snippet(b)
		}
		return apiErr
	}
	if decodeErr != nil {
		return fmt.Errorf("cdn: decode response: %w", decodeErr)
	}
	if !env.Success {
		apiErr := &APIError{Status: resp.StatusCode}
		if len(env.Errors) > 0 {
			apiErr.Code = env.Errors[0].Code
			apiErr.Message = env.Errors[0].Message
		}
		return apiErr
	}
	if result != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, result); err != nil {
			return fmt.Errorf("cdn: decode result: %w", err)
		}
	}
	return nil
}

func (c *Client) zoneURL(zoneID string) string {
	return c.cfg.BaseURL + "/zones/" + url.PathEscape(zoneID)
}

func (c *Client) observe(kind string, err error, d time.Duration, n int) {
	if c.obs == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	c.obs.PurgeRequest(kind, outcome, d)
	if err == nil {
		c.obs.ItemsPurged(kind, n)
	}
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 256 {
		s = s[:256]
	}
	return s
}
