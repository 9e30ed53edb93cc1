package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kirillkom/aaer-miner/internal/core/domain"
	"github.com/kirillkom/aaer-miner/internal/infrastructure/entities"
	"github.com/kirillkom/aaer-miner/internal/infrastructure/httpx"
	"github.com/kirillkom/aaer-miner/internal/infrastructure/resilience"
)

type Options struct {
	URL        string
	File       string
	UserAgent  string
	Timeout    time.Duration
	Executor   *resilience.Executor
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Directory is a read-only table of registered companies. Reload swaps in a new
// snapshot atomically so concurrent resolvers never see a partial table.
type Directory struct {
	opts     Options
	client   *http.Client
	logger   *slog.Logger
	snapshot atomic.Pointer[snapshot]
}

type snapshot struct {
	companies  []domain.RegistryCompany
	normalized []string
	exact      map[string]int
	loadedAt   time.Time
}

func NewDirectory(opts Options) *Directory {
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{opts: opts, client: client, logger: logger}
}

// NewStaticDirectory builds a directory from an in-memory table.
func NewStaticDirectory(companies []domain.RegistryCompany) *Directory {
	d := NewDirectory(Options{})
	d.snapshot.Store(newSnapshot(companies))
	return d
}

// Reload fetches the table from the configured file or URL. On failure the previous
// snapshot stays in place.
func (d *Directory) Reload(ctx context.Context) error {
	var (
		companies []domain.RegistryCompany
		err       error
	)
	switch {
	case d.opts.File != "":
		companies, err = d.loadFile(d.opts.File)
	case d.opts.URL != "":
		companies, err = resilience.Call(ctx, d.opts.Executor, "registry.fetch", func(ctx context.Context) ([]domain.RegistryCompany, error) {
			return d.loadURL(ctx, d.opts.URL)
		}, httpx.Classify)
		err = httpx.WrapTemporary("registry fetch", err)
	default:
		err = domain.WrapError(domain.ErrInvalidInput, "registry reload", fmt.Errorf("no registry file or url configured"))
	}
	if err != nil {
		return err
	}
	if len(companies) == 0 {
		return fmt.Errorf("registry reload: empty company table")
	}

	d.snapshot.Store(newSnapshot(companies))
	d.logger.Info("registry_loaded", "companies", len(companies))
	return nil
}

func (d *Directory) Len() int {
	snap := d.snapshot.Load()
	if snap == nil {
		return 0
	}
	return len(snap.companies)
}

func (d *Directory) current() *snapshot {
	return d.snapshot.Load()
}

func (d *Directory) loadFile(path string) ([]domain.RegistryCompany, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open registry file: %w", err)
	}
	defer f.Close()
	return decodeTickers(f)
}

func (d *Directory) loadURL(ctx context.Context, url string) ([]domain.RegistryCompany, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create registry request: %w", err)
	}
	if d.opts.UserAgent != "" {
		req.Header.Set("User-Agent", d.opts.UserAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("registry request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, httpx.NewStatusError("registry fetch", resp)
	}
	return decodeTickers(resp.Body)
}

// tickerEntry is one row of SEC company_tickers.json.
type tickerEntry struct {
	CIK    int64  `json:"cik_str"`
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
}

func decodeTickers(r io.Reader) ([]domain.RegistryCompany, error) {
	var raw map[string]tickerEntry
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode registry json: %w", err)
	}
	out := make([]domain.RegistryCompany, 0, len(raw))
	for _, e := range raw {
		if e.CIK <= 0 || strings.TrimSpace(e.Title) == "" {
			continue
		}
		out = append(out, domain.RegistryCompany{
			CIK:    FormatCIK(e.CIK),
			Ticker: strings.ToUpper(strings.TrimSpace(e.Ticker)),
			Name:   strings.TrimSpace(e.Title),
		})
	}
	return out, nil
}

// FormatCIK zero-pads a central index key to ten digits.
func FormatCIK(cik int64) string {
	return fmt.Sprintf("%010d", cik)
}

func newSnapshot(companies []domain.RegistryCompany) *snapshot {
	sorted := make([]domain.RegistryCompany, len(companies))
	copy(sorted, companies)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CIK < sorted[j].CIK })

	snap := &snapshot{
		companies:  sorted,
		normalized: make([]string, len(sorted)),
		exact:      make(map[string]int, len(sorted)),
		loadedAt:   time.Now().UTC(),
	}
	for i, c := range sorted {
		n := entities.Normalize(c.Name)
		snap.normalized[i] = n
		// Rows are CIK-ordered, so the first one kept is the lowest CIK.
		if _, ok := snap.exact[n]; !ok {
			snap.exact[n] = i
		}
	}
	return snap
}
