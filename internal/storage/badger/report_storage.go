package badger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/marketdesk/internal/interfaces"
	"github.com/ternarybob/marketdesk/internal/reg30"
	"github.com/timshannon/badgerhold/v4"
)

// ReportStorage implements interfaces.ReportStorage for Badger
type ReportStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewReportStorage creates a new ReportStorage instance
func NewReportStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ReportStorage {
	return &ReportStorage{
		db:     db,
		logger: logger,
	}
}

// UpsertReport stores the report under its fingerprint. Re-ingesting the
// same disclosure replaces the analysis and keeps the original CreatedAt.
func (s *ReportStorage) UpsertReport(ctx context.Context, report *reg30.Report) (bool, error) {
	if report.EventFingerprint == "" {
		return false, fmt.Errorf("report fingerprint is required")
	}

	created := false
	err := s.db.Store().Badger().Update(func(tx *badger.Txn) error {
		now := time.Now()
		var existing reg30.Report
		switch err := s.db.Store().TxGet(tx, report.EventFingerprint, &existing); {
		case err == nil:
			report.CreatedAt = existing.CreatedAt
		case errors.Is(err, badgerhold.ErrNotFound):
			created = true
			if report.CreatedAt.IsZero() {
				report.CreatedAt = now
			}
		default:
			return err
		}
		report.UpdatedAt = now
		return s.db.Store().TxUpsert(tx, report.EventFingerprint, report)
	})
	if err != nil {
		return false, fmt.Errorf("failed to upsert report %s: %w", report.EventFingerprint, err)
	}

	s.logger.Debug().
		Str("fingerprint", report.EventFingerprint).
		Str("symbol", report.Symbol).
		Bool("created", created).
		Msg("Report saved")
	return created, nil
}

func (s *ReportStorage) GetReport(ctx context.Context, fingerprint string) (*reg30.Report, error) {
	var report reg30.Report
	err := s.db.Store().Get(fingerprint, &report)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report %s: %w", fingerprint, err)
	}
	return &report, nil
}

// ListReports returns reports newest event first. Ties are broken by the
// most recent analysis.
func (s *ReportStorage) ListReports(ctx context.Context, filter interfaces.ReportFilter) ([]*reg30.Report, error) {
	var query *badgerhold.Query
	symbol := strings.ToUpper(strings.TrimSpace(filter.Symbol))
	switch {
	case symbol != "" && filter.Family != "":
		query = badgerhold.Where("Symbol").Eq(symbol).Index("Symbol").And("EventFamily").Eq(filter.Family)
	case symbol != "":
		query = badgerhold.Where("Symbol").Eq(symbol).Index("Symbol")
	case filter.Family != "":
		query = badgerhold.Where("EventFamily").Eq(filter.Family).Index("EventFamily")
	}

	var reports []reg30.Report
	if err := s.db.Store().Find(&reports, query); err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}

	sort.SliceStable(reports, func(i, j int) bool {
		if reports[i].EventDate != reports[j].EventDate {
			return reports[i].EventDate > reports[j].EventDate
		}
		return reports[i].UpdatedAt.After(reports[j].UpdatedAt)
	})

	if filter.Limit > 0 && len(reports) > filter.Limit {
		reports = reports[:filter.Limit]
	}

	result := make([]*reg30.Report, len(reports))
	for i := range reports {
		result[i] = &reports[i]
	}
	return result, nil
}

func (s *ReportStorage) CountReports(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&reg30.Report{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count reports: %w", err)
	}
	return int(count), nil
}

// DeleteAllReports wipes the report store and returns how many were removed
func (s *ReportStorage) DeleteAllReports(ctx context.Context) (int, error) {
	count, err := s.CountReports(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.db.Store().DeleteMatching(&reg30.Report{}, nil); err != nil {
		return 0, fmt.Errorf("failed to delete reports: %w", err)
	}
	s.logger.Info().Int("count", count).Msg("Deleted all reports")
	return count, nil
}
