package syncer

import (
	"context"
	"fmt"
	"sort"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/logger"
)

// AuditReport compares the external index with what the sync log says it
// should hold.
type AuditReport struct {
	IndexedCount  int `json:"indexed_count"`
	ExpectedCount int `json:"expected_count"`
	// Orphaned refs are in the index but not backed by any item.
	Orphaned []string `json:"orphaned"`
	// Missing refs were uploaded according to the log but are absent.
	Missing []string `json:"missing"`
}

// InSync reports whether the index matches the log exactly.
func (r *AuditReport) InSync() bool {
	return len(r.Orphaned) == 0 && len(r.Missing) == 0
}

// Audit lists the index and reconciles it against the sync log. It changes
// nothing; a following sync pass repairs missing items once they are marked
// stale.
func (s *Service) Audit(ctx context.Context) (*AuditReport, error) {
	indexed, err := s.index.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list index: %w", err)
	}

	expected, err := s.log.IndexedRefs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list indexed refs: %w", err)
	}

	inIndex := make(map[string]struct{}, len(indexed))
	for _, ref := range indexed {
		inIndex[ref] = struct{}{}
	}
	inLog := make(map[string]struct{}, len(expected))
	for _, ref := range expected {
		inLog[ref.ExternalIndexID] = struct{}{}
	}

	report := &AuditReport{
		IndexedCount:  len(inIndex),
		ExpectedCount: len(inLog),
		Orphaned:      []string{},
		Missing:       []string{},
	}
	for ref := range inIndex {
		if _, ok := inLog[ref]; !ok {
			report.Orphaned = append(report.Orphaned, ref)
		}
	}
	for ref := range inLog {
		if _, ok := inIndex[ref]; !ok {
			report.Missing = append(report.Missing, ref)
		}
	}
	sort.Strings(report.Orphaned)
	sort.Strings(report.Missing)

	s.logger.Info("Index audit completed",
		logger.Int("indexed", report.IndexedCount),
		logger.Int("expected", report.ExpectedCount),
		logger.Int("orphaned", len(report.Orphaned)),
		logger.Int("missing", len(report.Missing)),
	)
	return report, nil
}
