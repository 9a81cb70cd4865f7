// Package quota holds the per-tier document limits.
package quota

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"pdfchat-backend/internal/shared/apperr"
)

const (
	TierFree = "Free"
	TierPro  = "Pro"
)

// Quota is the immutable limit set of one tier.
type Quota struct {
	TierName            string `yaml:"name"`
	MaxPagesPerDocument int    `yaml:"maxPagesPerDocument"`
	MaxFileSizeBytes    int64  `yaml:"maxFileSizeBytes"`
}

// Table maps tier names to quotas. It is read-only after construction.
type Table struct {
	tiers map[string]Quota
}

// Defaults returns the built-in Free and Pro tiers.
func Defaults() *Table {
	return &Table{tiers: map[string]Quota{
		TierFree: {TierName: TierFree, MaxPagesPerDocument: 5, MaxFileSizeBytes: 4 << 20},
		TierPro:  {TierName: TierPro, MaxPagesPerDocument: 25, MaxFileSizeBytes: 16 << 20},
	}}
}

type fileFormat struct {
	Tiers []Quota `yaml:"tiers"`
}

// LoadFile reads a YAML tier table and overlays it on the defaults:
//
//	tiers:
//	  - name: Pro
//	    maxPagesPerDocument: 50
//	    maxFileSizeBytes: 33554432
func LoadFile(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read quota file: %w", err)
	}
	return Parse(raw)
}

// Parse overlays a YAML tier table on the defaults.
func Parse(raw []byte) (*Table, error) {
	var parsed fileFormat
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse quota file: %w", err)
	}
	table := Defaults()
	for _, q := range parsed.Tiers {
		q.TierName = strings.TrimSpace(q.TierName)
		if q.TierName == "" {
			return nil, fmt.Errorf("quota tier without name")
		}
		if q.MaxPagesPerDocument <= 0 || q.MaxFileSizeBytes <= 0 {
			return nil, fmt.Errorf("quota tier %s: limits must be positive", q.TierName)
		}
		table.tiers[q.TierName] = q
	}
	return table, nil
}

// For returns the quota of tier. Unknown tiers get the Free quota.
func (t *Table) For(tier string) Quota {
	if q, ok := t.tiers[strings.TrimSpace(tier)]; ok {
		return q
	}
	return t.tiers[TierFree]
}

// CheckPages rejects documents with more pages than the tier allows. The
// limit itself is accepted.
func (t *Table) CheckPages(tier string, pages int) error {
	q := t.For(tier)
	if pages > q.MaxPagesPerDocument {
		return apperr.QuotaExceeded(q.TierName, pages, q.MaxPagesPerDocument)
	}
	return nil
}

// CheckFileSize rejects uploads above the tier's byte limit.
func (t *Table) CheckFileSize(tier string, size int64) error {
	q := t.For(tier)
	if size > q.MaxFileSizeBytes {
		return fmt.Errorf("%w: tier %s allows %d bytes, file has %d", apperr.ErrQuotaExceeded, q.TierName, q.MaxFileSizeBytes, size)
	}
	return nil
}
