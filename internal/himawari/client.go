package himawari

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"himawari-desktop/internal/apperr"
	"himawari-desktop/internal/common"
	"himawari-desktop/internal/ratelimit"
)

const (
	// DefaultBaseURL is the NICT full-disk (D531106) imagery root
	DefaultBaseURL = "https://himawari8-dl.nict.go.jp/himawari8/img/D531106"

	// User agent
	UserAgent = "himawari-desktop/1.0 (+https://himawari8.nict.go.jp)"

	// DefaultTileTimeout bounds a single tile fetch, including rate limit waits
	DefaultTileTimeout = 2 * time.Minute

	// DefaultMetadataTimeout bounds the latest.json request
	DefaultMetadataTimeout = 30 * time.Second
)

// LatestInfo is the latest.json document
type LatestInfo struct {
	Date string `json:"date"`
	File string `json:"file"`
}

// Client talks to the Himawari-8 tile service
type Client struct {
	httpClient  *http.Client
	baseURL     string
	tileTimeout time.Duration
	rateLimit   *ratelimit.Handler
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL points the client at another service root
func WithBaseURL(base string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(base, "/")
	}
}

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTileTimeout sets the per-tile timeout
func WithTileTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.tileTimeout = d
		}
	}
}

// WithRateLimitHandler enables backoff and retry on throttling responses
func WithRateLimitHandler(h *ratelimit.Handler) Option {
	return func(c *Client) {
		c.rateLimit = h
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock replaces time.Now, which feeds the metadata cache buster
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a new Himawari client with system proxy support
func NewClient(opts ...Option) *Client {
	// Use http.ProxyFromEnvironment to respect system proxy settings
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConnsPerHost: 16,
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout:   DefaultTileTimeout,
			Transport: transport,
		},
		baseURL:     DefaultBaseURL,
		tileTimeout: DefaultTileTimeout,
		logger:      slog.New(slog.DiscardHandler),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the service root
func (c *Client) BaseURL() string {
	return c.baseURL
}

// LatestURL returns the metadata URL with a cache-busting query parameter
func (c *Client) LatestURL() (string, error) {
	now := c.now()
	if !now.After(time.Unix(0, 0)) {
		return "", apperr.New(apperr.KindClock, fmt.Sprintf("system clock reads %s, before the unix epoch", now.Format(time.RFC3339)))
	}

	u, err := url.Parse(c.baseURL + "/latest.json")
	if err != nil {
		return "", apperr.Wrap(apperr.KindConfig, "invalid base URL", err)
	}
	q := u.Query()
	q.Set("_", strconv.FormatInt(now.Unix(), 10))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ResolveLatest fetches latest.json and returns the timestamp of the newest image
func (c *Client) ResolveLatest(ctx context.Context) (time.Time, error) {
	info, err := c.FetchLatestInfo(ctx)
	if err != nil {
		return time.Time{}, err
	}

	ts, err := common.ParseMetadataDate(info.Date)
	if err != nil {
		return time.Time{}, apperr.Wrap(apperr.KindMetadata, fmt.Sprintf("failed to parse date %q", info.Date), err)
	}

	c.logger.Debug("resolved latest image", "date", info.Date, "file", info.File)
	return ts, nil
}

// FetchLatestInfo downloads and decodes latest.json
func (c *Client) FetchLatestInfo(ctx context.Context) (*LatestInfo, error) {
	latestURL, err := c.LatestURL()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultMetadataTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, latestURL, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindMetadata, "failed to create request", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindMetadata, "failed to fetch latest.json", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperr.Wrap(apperr.KindMetadata, "latest.json request failed",
			fmt.Errorf("status: %d", resp.StatusCode))
	}

	var info LatestInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, apperr.Wrap(apperr.KindMetadata, "failed to parse latest.json", err)
	}
	if info.Date == "" {
		return nil, apperr.New(apperr.KindMetadata, "latest.json has no date field")
	}

	return &info, nil
}

// TileURL returns the URL of one tile for the given level and timestamp
func (c *Client) TileURL(level common.Level, ts time.Time, tile common.TileCoord) string {
	return TileURL(c.baseURL, level, common.TileWidth, ts, tile.X, tile.Y)
}

// FetchTile downloads and decodes one tile
func (c *Client) FetchTile(ctx context.Context, tileURL string) (image.Image, error) {
	data, err := c.FetchTileData(ctx, tileURL)
	if err != nil {
		return nil, err
	}
	return DecodeTile(data)
}

// FetchTileData downloads the raw PNG bytes of one tile. Throttling responses are
// retried per the rate limit handler; everything else fails immediately.
func (c *Client) FetchTileData(ctx context.Context, tileURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.tileTimeout)
	defer cancel()

	for attempt := 0; ; attempt++ {
		if c.rateLimit != nil {
			if err := c.rateLimit.Wait(ctx, common.ProviderHimawari); err != nil {
				return nil, apperr.TileFetch(apperr.FailureTransport, "waiting out rate limit", err)
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, tileURL, nil)
		if err != nil {
			return nil, apperr.TileFetch(apperr.FailureTransport, "failed to create request", err)
		}
		req.Header.Set("User-Agent", UserAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, apperr.TileFetch(apperr.FailureTransport, "failed to fetch tile", err)
		}

		if c.rateLimit != nil && c.rateLimit.CheckResponse(common.ProviderHimawari, resp) {
			resp.Body.Close()
			if attempt >= c.rateLimit.MaxRetries() {
				return nil, apperr.TileFetch(apperr.FailureStatus, "tile request rate limited",
					fmt.Errorf("status: %d after %d retries", resp.StatusCode, attempt))
			}
			continue
		}

		data, err := readTileBody(resp)
		resp.Body.Close()
		return data, err
	}
}

func readTileBody(resp *http.Response) ([]byte, error) {
	if resp.StatusCode != http.StatusOK {
		return nil, apperr.TileFetch(apperr.FailureStatus, "tile request failed",
			fmt.Errorf("status: %d", resp.StatusCode))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.TileFetch(apperr.FailureTransport, "failed to read tile", err)
	}
	return data, nil
}

// DecodeTile decodes raw tile bytes as PNG. The header is checked first so a
// tile that is not TileWidth square is rejected without decoding its pixels.
func DecodeTile(data []byte) (image.Image, error) {
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, apperr.TileFetch(apperr.FailureDecode, "failed to decode tile", err)
	}
	if cfg.Width != common.TileWidth || cfg.Height != common.TileWidth {
		return nil, apperr.TileFetch(apperr.FailureDecode, "unexpected tile size",
			fmt.Errorf("got %dx%d, want %dx%d", cfg.Width, cfg.Height, common.TileWidth, common.TileWidth))
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperr.TileFetch(apperr.FailureDecode, "failed to decode tile", err)
	}
	return img, nil
}
