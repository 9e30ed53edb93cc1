package fetch

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/kirillkom/aaer-miner/internal/core/domain"
	"github.com/kirillkom/aaer-miner/internal/infrastructure/httpx"
	"github.com/kirillkom/aaer-miner/internal/infrastructure/resilience"
)

const maxDocumentBytes = 64 << 20

// Cache stores downloaded bodies by key.
type Cache interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// ObjectReader opens objects in a bucket store such as GCS.
type ObjectReader interface {
	NewObjectReader(ctx context.Context, bucket, object string) (io.ReadCloser, error)
}

type Options struct {
	UserAgent  string
	Timeout    time.Duration
	Cache      Cache
	Objects    ObjectReader
	Executor   *resilience.Executor
	HTTPClient *http.Client
	Logger     *slog.Logger

	// MaxDocumentBytes bounds a single body; larger documents fail as unreadable.
	MaxDocumentBytes int64
}

// Fetcher downloads documents over http(s), gs:// or the local filesystem.
type Fetcher struct {
	userAgent  string
	httpClient *http.Client
	cache      Cache
	objects    ObjectReader
	executor   *resilience.Executor
	logger     *slog.Logger
	maxBytes   int64
}

func New(opts Options) *Fetcher {
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxBytes := opts.MaxDocumentBytes
	if maxBytes <= 0 {
		maxBytes = maxDocumentBytes
	}
	return &Fetcher{
		maxBytes:   maxBytes,
		userAgent:  opts.UserAgent,
		httpClient: client,
		cache:      opts.Cache,
		objects:    opts.Objects,
		executor:   opts.Executor,
		logger:     logger,
	}
}

func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (domain.Payload, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return domain.Payload{}, domain.WrapError(domain.ErrInvalidInput, "fetch", fmt.Errorf("empty url"))
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return domain.Payload{}, domain.WrapError(domain.ErrInvalidInput, "fetch", err)
	}

	switch u.Scheme {
	case "http", "https":
		return f.fetchCached(ctx, rawURL, f.fetchHTTP)
	case "gs":
		return f.fetchCached(ctx, rawURL, func(ctx context.Context, _ string) (domain.Payload, error) {
			return f.fetchObject(ctx, u.Host, strings.TrimPrefix(u.Path, "/"))
		})
	case "file":
		return readFile(u.Path)
	case "":
		return readFile(rawURL)
	default:
		return domain.Payload{}, domain.WrapError(domain.ErrInvalidInput, "fetch", fmt.Errorf("unsupported scheme %q", u.Scheme))
	}
}

// CacheKey is the hex SHA-256 of the document URL.
func CacheKey(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return hex.EncodeToString(sum[:])
}

func (f *Fetcher) fetchCached(ctx context.Context, rawURL string, load func(context.Context, string) (domain.Payload, error)) (domain.Payload, error) {
	if f.cache == nil {
		return load(ctx, rawURL)
	}

	key := CacheKey(rawURL)
	if rc, err := f.cache.Open(ctx, key); err == nil {
		defer rc.Close()
		content, readErr := f.readBody(rc)
		if readErr == nil && len(content) > 0 {
			return domain.Payload{Content: content}, nil
		}
	} else if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		f.logger.Warn("download_cache_read_failed", "url", rawURL, "error", err)
	}

	payload, err := load(ctx, rawURL)
	if err != nil {
		return domain.Payload{}, err
	}
	if err := f.cache.Save(ctx, key, bytes.NewReader(payload.Content)); err != nil {
		f.logger.Warn("download_cache_write_failed", "url", rawURL, "error", err)
	}
	return payload, nil
}

func (f *Fetcher) fetchHTTP(ctx context.Context, rawURL string) (domain.Payload, error) {
	payload, err := resilience.Call(ctx, f.executor, "fetch.http", func(ctx context.Context) (domain.Payload, error) {
		return f.get(ctx, rawURL)
	}, httpx.Classify)
	if err != nil {
		var statusErr *httpx.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return domain.Payload{}, domain.WrapError(domain.ErrDocumentNotFound, "fetch", err)
		}
		return domain.Payload{}, httpx.WrapTemporary("fetch", err)
	}
	return payload, nil
}

func (f *Fetcher) get(ctx context.Context, rawURL string) (domain.Payload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return domain.Payload{}, fmt.Errorf("create fetch request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return domain.Payload{}, fmt.Errorf("fetch request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return domain.Payload{}, httpx.NewStatusError("fetch", resp)
	}
	content, err := f.readBody(resp.Body)
	if err != nil {
		return domain.Payload{}, fmt.Errorf("read fetch body: %w", err)
	}
	return domain.Payload{Content: content, ContentType: resp.Header.Get("Content-Type")}, nil
}

func (f *Fetcher) fetchObject(ctx context.Context, bucket, object string) (domain.Payload, error) {
	if f.objects == nil {
		return domain.Payload{}, domain.WrapError(domain.ErrInvalidInput, "fetch object", fmt.Errorf("no object store configured for gs://%s", bucket))
	}
	if bucket == "" || object == "" {
		return domain.Payload{}, domain.WrapError(domain.ErrInvalidInput, "fetch object", fmt.Errorf("malformed object url gs://%s/%s", bucket, object))
	}

	rc, err := f.objects.NewObjectReader(ctx, bucket, object)
	if err != nil {
		return domain.Payload{}, err
	}
	defer rc.Close()

	content, err := f.readBody(rc)
	if err != nil {
		return domain.Payload{}, fmt.Errorf("read object gs://%s/%s: %w", bucket, object, err)
	}
	return domain.Payload{Content: content}, nil
}

// readBody reads one byte past the limit so an oversized body is reported instead
// of being truncated and cached.
func (f *Fetcher) readBody(r io.Reader) ([]byte, error) {
	content, err := io.ReadAll(io.LimitReader(r, f.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(content)) > f.maxBytes {
		return nil, domain.WrapError(domain.ErrUnreadableDocument, "read document", fmt.Errorf("body exceeds %d bytes", f.maxBytes))
	}
	return content, nil
}

func readFile(path string) (domain.Payload, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.Payload{}, domain.WrapError(domain.ErrDocumentNotFound, "fetch file", err)
		}
		return domain.Payload{}, fmt.Errorf("read file %s: %w", path, err)
	}
	return domain.Payload{Content: content}, nil
}
