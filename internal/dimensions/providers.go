package dimensions

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"nhstac/internal/canonical"
	"nhstac/internal/config"
	apperrors "nhstac/internal/errors"
)

// providerNamespace scopes provider ids so the same organisation always gets the same id
var providerNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:nhstac:provider"))

var providerColumns = []canonical.Column{
	{Name: "provider_id", Type: "VARCHAR"},
	{Name: "sector", Type: "VARCHAR"},
	{Name: "org_name_raw", Type: "VARCHAR"},
	{Name: "org_name_canonical", Type: "VARCHAR"},
	{Name: "first_fy", Type: "VARCHAR"},
	{Name: "last_fy", Type: "VARCHAR"},
	{Name: "row_count", Type: "BIGINT"},
}

// ProvidersJob builds dim_provider: one row per organisation and sector
type ProvidersJob struct{}

func (ProvidersJob) Name() string { return "providers" }

func (ProvidersJob) Description() string {
	return "Provider dimension with first and last year seen"
}

func (j ProvidersJob) Run(ctx context.Context, env *Env) (*Result, error) {
	if err := env.Store.RequireTable(ctx, config.FactTableName); err != nil {
		return nil, err
	}

	rows, err := env.Store.DB().QueryContext(ctx, `
		SELECT sector, org_name_raw, MIN(fy), MAX(fy), COUNT(*)
		FROM fact_tru_tac
		GROUP BY sector, org_name_raw
		ORDER BY sector, org_name_raw`)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to group providers", err)
	}
	defer rows.Close()

	var out [][]interface{}
	for rows.Next() {
		var sector, org, first, last string
		var n int64
		if err := rows.Scan(&sector, &org, &first, &last, &n); err != nil {
			return nil, apperrors.NewStorageError("failed to scan provider", err)
		}
		out = append(out, []interface{}{ProviderID(sector, org), sector, org, CanonicalOrgName(org), first, last, n})
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("failed to read providers", err)
	}
	rows.Close()

	return publish(ctx, env, config.ProviderDimTable, providerColumns, out)
}

// ProviderID returns the stable id of an organisation within a sector
func ProviderID(sector, org string) string {
	return uuid.NewSHA1(providerNamespace, []byte(sector+"\x00"+org)).String()
}

// CanonicalOrgName trims and collapses internal whitespace
func CanonicalOrgName(org string) string {
	return strings.Join(strings.Fields(org), " ")
}
