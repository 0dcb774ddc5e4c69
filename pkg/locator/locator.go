// Package locator discovers asset references that still point at retired
// storage accounts.
package locator

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"assetmigration/pkg/asseturl"
	"assetmigration/pkg/models"
)

// Source names a table/column pair whose rows hold asset URLs. The business
// schema is configuration, not code.
type Source struct {
	Table  string `yaml:"table" json:"table"`
	Column string `yaml:"column" json:"column"`
}

// Locator yields the set of assets a migration run should process.
type Locator interface {
	Locate(ctx context.Context) ([]models.AssetRef, error)
	Close() error
}

// DBLocator scans configured PostgreSQL table/column pairs for URLs hosted
// on retired accounts.
type DBLocator struct {
	db      *sql.DB
	sources []Source
	hosts   map[string]bool
	log     *zap.Logger
}

// NewDBLocator opens a PostgreSQL connection and verifies it with a ping.
func NewDBLocator(dsn string, sources []Source, retired []models.RetiredAccount, log *zap.Logger) (*DBLocator, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open locator database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping locator database: %w", err)
	}

	return &DBLocator{
		db:      db,
		sources: sources,
		hosts:   retiredHosts(retired),
		log:     log,
	}, nil
}

// Locate reads every configured column, keeps the URLs served by a retired
// host and de-duplicates the result by public id. URLs that cannot be
// decomposed are kept with an empty public id so the caller can count them
// as failures instead of silently dropping them.
func (l *DBLocator) Locate(ctx context.Context) ([]models.AssetRef, error) {
	var urls []string
	for _, src := range l.sources {
		found, err := l.scanSource(ctx, src)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s.%s: %w", src.Table, src.Column, err)
		}
		urls = append(urls, found...)
	}

	refs := Collect(urls, l.hosts)
	l.log.Info("asset discovery finished",
		zap.Int("sources", len(l.sources)),
		zap.Int("urls_seen", len(urls)),
		zap.Int("assets", len(refs)))
	return refs, nil
}

func (l *DBLocator) scanSource(ctx context.Context, src Source) ([]string, error) {
	query := fmt.Sprintf(
		"SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL AND %s <> ''",
		pq.QuoteIdentifier(src.Column),
		pq.QuoteIdentifier(src.Table),
		pq.QuoteIdentifier(src.Column),
		pq.QuoteIdentifier(src.Column),
	)

	rows, err := l.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

func (l *DBLocator) Close() error {
	return l.db.Close()
}

// Static serves a fixed URL list. It backs the CLI's file-driven mode and
// keeps dry runs independent of the business database.
type Static struct {
	urls  []string
	hosts map[string]bool
}

func NewStatic(urls []string, retired []models.RetiredAccount) *Static {
	return &Static{urls: urls, hosts: retiredHosts(retired)}
}

func (s *Static) Locate(ctx context.Context) ([]models.AssetRef, error) {
	return Collect(s.urls, s.hosts), nil
}

func (s *Static) Close() error { return nil }

// Collect filters raw URLs down to assets on retired hosts, decomposes them
// and de-duplicates by public id. The same asset referenced from several
// rows must be migrated exactly once. Output order is deterministic.
func Collect(urls []string, hosts map[string]bool) []models.AssetRef {
	seen := make(map[string]bool)
	var refs []models.AssetRef

	for _, raw := range urls {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		parsed, err := url.Parse(raw)
		if err != nil || !hosts[strings.ToLower(parsed.Hostname())] {
			continue
		}

		ref, err := asseturl.Decompose(raw)
		if err != nil {
			ref = models.AssetRef{SourceURL: raw}
		}

		key := ref.PublicID
		if key == "" {
			key = "\x00" + ref.SourceURL
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		refs = append(refs, ref)
	}

	sort.Slice(refs, func(i, j int) bool {
		if refs[i].PublicID != refs[j].PublicID {
			return refs[i].PublicID < refs[j].PublicID
		}
		return refs[i].SourceURL < refs[j].SourceURL
	})
	return refs
}

func retiredHosts(retired []models.RetiredAccount) map[string]bool {
	hosts := make(map[string]bool, len(retired))
	for _, acct := range retired {
		if acct.Host != "" {
			hosts[strings.ToLower(acct.Host)] = true
		}
	}
	return hosts
}
