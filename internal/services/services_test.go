package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nhstac/internal/canonical"
	apperrors "nhstac/internal/errors"
	"nhstac/pkg/contracts/domain"
)

type fakeStore struct {
	tables    []canonical.TableInfo
	err       error
	filter    canonical.FactFilter
	worksheet string
}

func (f *fakeStore) Tables(context.Context) ([]canonical.TableInfo, error) { return f.tables, f.err }
func (f *fakeStore) QC(context.Context) ([]domain.QCRow, error)            { return nil, f.err }

func (f *fakeStore) Facts(_ context.Context, filter canonical.FactFilter) ([]domain.FactRecord, error) {
	f.filter = filter
	return []domain.FactRecord{{OrgName: "Alpha NHS Trust"}}, f.err
}

func (f *fakeStore) SubCodes(_ context.Context, ws string) ([]domain.SubCodeDim, error) {
	f.worksheet = ws
	return nil, f.err
}

type fakeRuns struct{ n int }

func (f *fakeRuns) RecentRuns(_ context.Context, n int) ([]domain.Run, error) {
	f.n = n
	return []domain.Run{{ID: "r1", StartedAt: time.Now()}}, nil
}

func TestBrowserService_Facts(t *testing.T) {
	tests := []struct {
		name      string
		query     FactsQuery
		wantLimit int
		wantErr   bool
	}{
		{name: "default limit", query: FactsQuery{}, wantLimit: DefaultFactLimit},
		{name: "explicit limit", query: FactsQuery{FY: "2023-24", Sector: "FT", Limit: 5}, wantLimit: 5},
		{name: "capped limit", query: FactsQuery{Limit: MaxFactLimit + 1}, wantLimit: MaxFactLimit},
		{name: "bad sector", query: FactsQuery{Sector: "CCG"}, wantErr: true},
		{name: "bad fy", query: FactsQuery{FY: "2023"}, wantErr: true},
		{name: "negative limit", query: FactsQuery{Limit: -1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{}
			svc := NewBrowserService(store, nil, nil)

			facts, err := svc.Facts(context.Background(), tt.query)
			if tt.wantErr {
				assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, facts, 1)
			assert.Equal(t, tt.wantLimit, store.filter.Limit)
			assert.Equal(t, tt.query.FY, store.filter.FY)
			assert.Equal(t, tt.query.Sector, store.filter.Sector)
		})
	}
}

func TestBrowserService_Runs(t *testing.T) {
	_, err := NewBrowserService(&fakeStore{}, nil, nil).Runs(context.Background(), 0)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))

	runs := &fakeRuns{}
	svc := NewBrowserService(&fakeStore{}, runs, nil)

	_, err = svc.Runs(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultRunLimit, runs.n)

	_, err = svc.Runs(context.Background(), 10_000)
	require.NoError(t, err)
	assert.Equal(t, MaxRunLimit, runs.n)

	_, err = svc.Runs(context.Background(), -1)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
}

func TestBrowserService_SubCodesTrimsWorksheet(t *testing.T) {
	store := &fakeStore{}
	_, err := NewBrowserService(store, nil, nil).SubCodes(context.Background(), "  TAC08 Op Exp ")
	require.NoError(t, err)
	assert.Equal(t, "TAC08 Op Exp", store.worksheet)
}

func TestHealthService(t *testing.T) {
	ok := NewHealthService(&fakeStore{tables: []canonical.TableInfo{{Name: "fact_tru_tac", Rows: 3}}}, nil)
	status := ok.HealthCheck(context.Background())
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, 1, status.Tables)

	bad := NewHealthService(&fakeStore{err: errors.New("database is locked")}, nil)
	status = bad.HealthCheck(context.Background())
	assert.Equal(t, "degraded", status.Status)
	assert.Equal(t, "database is locked", status.Message)
}
