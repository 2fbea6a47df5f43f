package storage

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/pool"

	"github.com/surfbill/surfbill/internal/cache"
	"github.com/surfbill/surfbill/internal/config"
	"github.com/surfbill/surfbill/internal/domain/invoice"
	ierr "github.com/surfbill/surfbill/internal/errors"
	"github.com/surfbill/surfbill/internal/logger"
	"github.com/surfbill/surfbill/internal/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	invoicesDirName = "invoices"
	backupsDirName  = "backups"
	documentExt     = ".json"

	// scanWorkers bounds the parallel document reads during index
	// rebuilds and backups
	scanWorkers = 4
)

// Store persists invoices as one JSON document per number under
// <data_dir>/invoices and maintains a derived in-memory index. All
// writes go through a single-writer mutex so overlapping save requests
// from the shell observe save-then-read ordering.
type Store struct {
	mu sync.RWMutex

	invoicesDir string
	backupsDir  string
	counterPath string
	vatRate     decimal.Decimal
	retention   int

	// index maps invoice number to its summary. Always a derivable
	// cache of the document store, rebuilt with build-new-then-swap.
	index map[string]*invoice.Summary

	docCache cache.Cache
	logger   *logger.Logger
}

var _ invoice.Repository = (*Store)(nil)

// NewStore creates the directory layout and builds the initial index
func NewStore(cfg *config.Configuration, log *logger.Logger) (*Store, error) {
	dataDir := cfg.Storage.DataDir
	s := &Store{
		invoicesDir: filepath.Join(dataDir, invoicesDirName),
		backupsDir:  filepath.Join(dataDir, backupsDirName),
		counterPath: filepath.Join(dataDir, "counter.json"),
		vatRate:     decimal.NewFromFloat(cfg.Invoicing.VATRate),
		retention:   cfg.Storage.BackupRetention,
		index:       map[string]*invoice.Summary{},
		docCache:    cache.NewInMemoryCache(),
		logger:      log,
	}

	for _, dir := range []string{s.invoicesDir, s.backupsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, ierr.WithError(err).
				WithHintf("failed to create storage directory %s", dir).
				Mark(ierr.ErrIO)
		}
	}

	if err := s.RebuildIndex(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

// Save validates the invoice, recomputes its derived totals and
// replaces the document via write-new-then-rename. On write failure the
// previous document is left unchanged. The prior revision, if any, is
// copied to the backup directory before being replaced.
func (s *Store) Save(ctx context.Context, inv *invoice.Invoice) error {
	if inv == nil {
		return ierr.NewError("invoice is nil").
			WithHint("nothing to save").
			Mark(ierr.ErrValidation)
	}
	if err := inv.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// totals are always derived, never trusted from the caller
	inv.ComputeTotals(s.vatRate)

	data, err := json.MarshalIndent(inv, "", "  ")
	if err != nil {
		return ierr.WithError(err).
			WithHintf("failed to encode invoice %s", inv.Number).
			Mark(ierr.ErrSystem)
	}

	path := s.documentPath(inv.Number)
	if _, err := os.Stat(path); err == nil {
		if err := s.backupRevision(inv.Number, path); err != nil {
			return err
		}
	}

	if err := writeFileAtomic(path, data); err != nil {
		return err
	}

	s.index[inv.Number] = inv.Summary()
	s.docCache.Delete(ctx, cache.GenerateKey(cache.PrefixInvoice, inv.Number))

	s.logger.Infow("saved invoice",
		"number", inv.Number,
		"total", inv.TotalAmount.String())
	return nil
}

// Get loads one invoice document. The parse fails closed: a document
// that does not form a valid, mathematically consistent record is
// reported as corrupt rather than partially admitted.
func (s *Store) Get(ctx context.Context, number string) (*invoice.Invoice, error) {
	if !invoice.NumberIsPathSafe(number) {
		return nil, ierr.NewError("invalid invoice number").
			WithHintf("invoice number %q contains path-unsafe characters", number).
			Mark(ierr.ErrValidation)
	}

	key := cache.GenerateKey(cache.PrefixInvoice, number)
	if cached, found := s.docCache.Get(ctx, key); found {
		if inv, ok := cached.(*invoice.Invoice); ok {
			return inv, nil
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, err := s.readDocument(s.documentPath(number))
	if err != nil {
		return nil, err
	}

	s.docCache.Set(ctx, key, inv, cache.DefaultExpiration)
	return inv, nil
}

// List returns a point-in-time snapshot of matching summaries; it is
// not a live view of the index.
func (s *Store) List(ctx context.Context, filter *types.InvoiceFilter) ([]*invoice.Summary, error) {
	s.mu.RLock()
	summaries := lo.Values(s.index)
	s.mu.RUnlock()

	if filter != nil && filter.Query != "" {
		query := strings.ToLower(filter.Query)
		summaries = lo.Filter(summaries, func(sum *invoice.Summary, _ int) bool {
			return strings.Contains(strings.ToLower(sum.Number), query) ||
				strings.Contains(strings.ToLower(sum.CustomerName), query) ||
				strings.Contains(strings.ToLower(sum.Notes), query)
		})
	}

	switch filter.GetSortBy() {
	case types.InvoiceSortByNumber:
		sort.Slice(summaries, func(i, j int) bool {
			return summaries[i].Number < summaries[j].Number
		})
	default:
		sort.Slice(summaries, func(i, j int) bool {
			if !summaries[i].Date.Equal(summaries[j].Date.Time) {
				return summaries[i].Date.After(summaries[j].Date.Time)
			}
			return summaries[i].Number < summaries[j].Number
		})
	}

	return summaries, nil
}

// Count returns the total number of stored invoices
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.index), nil
}

// RebuildIndex rescans the document store and swaps in a freshly built
// index, so readers never observe a partially populated one. Documents
// that fail to parse are logged and skipped; they remain loadable
// errors through Get.
func (s *Store) RebuildIndex(ctx context.Context) error {
	entries, err := os.ReadDir(s.invoicesDir)
	if err != nil {
		return ierr.WithError(err).
			WithHintf("failed to scan %s", s.invoicesDir).
			Mark(ierr.ErrIO)
	}

	var (
		indexMu  sync.Mutex
		newIndex = map[string]*invoice.Summary{}
	)

	p := pool.New().WithMaxGoroutines(scanWorkers)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), documentExt) {
			continue
		}
		name := entry.Name()
		p.Go(func() {
			inv, err := s.readDocument(filepath.Join(s.invoicesDir, name))
			if err != nil {
				s.logger.Warnw("skipping unreadable document during index rebuild",
					"file", name, "error", err)
				return
			}
			indexMu.Lock()
			newIndex[inv.Number] = inv.Summary()
			indexMu.Unlock()
		})
	}
	p.Wait()

	s.mu.Lock()
	s.index = newIndex
	s.mu.Unlock()
	s.docCache.Flush(ctx)

	s.logger.Infow("rebuilt invoice index", "documents", len(newIndex))
	return nil
}

func (s *Store) documentPath(number string) string {
	return filepath.Join(s.invoicesDir, number+documentExt)
}

// readDocument parses and strictly validates one document file
func (s *Store) readDocument(path string) (*invoice.Invoice, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ierr.NewError("invoice document does not exist").
				WithHintf("no invoice stored as %s", filepath.Base(path)).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHintf("failed to read %s", path).
			Mark(ierr.ErrIO)
	}

	var inv invoice.Invoice
	if err := json.Unmarshal(data, &inv); err != nil {
		return nil, ierr.WithError(err).
			WithHintf("document %s is not valid json", filepath.Base(path)).
			Mark(ierr.ErrCorruptData)
	}

	if err := inv.Validate(); err != nil {
		return nil, ierr.WithError(err).
			WithHintf("document %s does not form a valid invoice", filepath.Base(path)).
			Mark(ierr.ErrCorruptData)
	}
	if err := inv.ValidateStored(s.vatRate); err != nil {
		return nil, err
	}

	return &inv, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return ierr.WithError(err).
			WithHintf("failed to write %s", tmp).
			Mark(ierr.ErrIO)
	}
	if err := os.Rename(tmp, path); err != nil {
		return ierr.WithError(err).
			WithHintf("failed to replace %s", path).
			Mark(ierr.ErrIO)
	}
	return nil
}
