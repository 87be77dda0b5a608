package services

import (
	"context"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"nhstac/internal/canonical"
	apperrors "nhstac/internal/errors"
	"nhstac/pkg/contracts/domain"
)

const (
	DefaultFactLimit = 100
	MaxFactLimit     = 10000
	DefaultRunLimit  = 20
	MaxRunLimit      = 500
)

// FactStore is the read side of the canonical store
type FactStore interface {
	Tables(ctx context.Context) ([]canonical.TableInfo, error)
	QC(ctx context.Context) ([]domain.QCRow, error)
	Facts(ctx context.Context, filter canonical.FactFilter) ([]domain.FactRecord, error)
	SubCodes(ctx context.Context, worksheet string) ([]domain.SubCodeDim, error)
}

// RunHistory lists recorded pipeline runs
type RunHistory interface {
	RecentRuns(ctx context.Context, n int) ([]domain.Run, error)
}

// FactsQuery is the filter accepted by the facts endpoint
type FactsQuery struct {
	FY     string `validate:"omitempty,len=7"`
	Sector string `validate:"omitempty,oneof=Trust FT"`
	Org    string `validate:"max=200"`
	Limit  int    `validate:"gte=0"`
}

// BrowserService answers the read-only browser queries
type BrowserService struct {
	store    FactStore
	runs     RunHistory
	validate *validator.Validate
	logger   *slog.Logger
}

// NewBrowserService creates a browser service. runs may be nil when no ledger exists.
func NewBrowserService(store FactStore, runs RunHistory, logger *slog.Logger) *BrowserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &BrowserService{
		store:    store,
		runs:     runs,
		validate: validator.New(),
		logger:   logger.With(slog.String("service", "browser")),
	}
}

// Tables lists the tables of the store with their row counts
func (s *BrowserService) Tables(ctx context.Context) ([]canonical.TableInfo, error) {
	return s.store.Tables(ctx)
}

// QC returns the per year and sector quality summary
func (s *BrowserService) QC(ctx context.Context) ([]domain.QCRow, error) {
	return s.store.QC(ctx)
}

// Facts returns fact rows matching q. A zero limit uses DefaultFactLimit; larger
// limits are capped at MaxFactLimit.
func (s *BrowserService) Facts(ctx context.Context, q FactsQuery) ([]domain.FactRecord, error) {
	if err := s.validate.Struct(q); err != nil {
		return nil, apperrors.NewValidationError(validationMessage(err))
	}

	limit := q.Limit
	switch {
	case limit == 0:
		limit = DefaultFactLimit
	case limit > MaxFactLimit:
		limit = MaxFactLimit
	}

	facts, err := s.store.Facts(ctx, canonical.FactFilter{
		FY:     q.FY,
		Sector: q.Sector,
		Org:    q.Org,
		Limit:  limit,
	})
	if err != nil {
		return nil, err
	}
	s.logger.DebugContext(ctx, "facts_queried",
		slog.String("fy", q.FY),
		slog.String("sector", q.Sector),
		slog.Int("rows", len(facts)))
	return facts, nil
}

// SubCodes summarises the sub codes of a worksheet, or of all worksheets
func (s *BrowserService) SubCodes(ctx context.Context, worksheet string) ([]domain.SubCodeDim, error) {
	return s.store.SubCodes(ctx, strings.TrimSpace(worksheet))
}

// Runs returns the most recent runs, newest first
func (s *BrowserService) Runs(ctx context.Context, n int) ([]domain.Run, error) {
	if s.runs == nil {
		return nil, apperrors.NewNotFoundError("run ledger")
	}
	if n < 0 {
		return nil, apperrors.NewValidationError("limit must not be negative")
	}
	if n == 0 {
		n = DefaultRunLimit
	}
	if n > MaxRunLimit {
		n = MaxRunLimit
	}
	return s.runs.RecentRuns(ctx, n)
}

// validationMessage names the fields that failed validation
func validationMessage(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	parts := make([]string, len(verrs))
	for i, fe := range verrs {
		parts[i] = strings.ToLower(fe.Field()) + " failed " + fe.Tag()
	}
	return "invalid query: " + strings.Join(parts, ", ")
}
