package canonical

import (
	"sort"

	"github.com/shopspring/decimal"

	"nhstac/internal/extract"
	"nhstac/pkg/contracts/domain"
)

// Unifier concatenates extracted workbooks into the canonical Parquet file.
// Records are appended in the order workbooks are added; nothing is
// deduplicated or reconciled.
type Unifier struct {
	writer  *ParquetWriter
	qc      *QCAccumulator
	sources []string
}

// NewUnifier starts a new fact file at path
func NewUnifier(path string) (*Unifier, error) {
	w, err := NewParquetWriter(path)
	if err != nil {
		return nil, err
	}
	return &Unifier{writer: w, qc: NewQCAccumulator()}, nil
}

// Append adds one workbook's records
func (u *Unifier) Append(result *extract.Result) error {
	if err := u.writer.Write(result.Records); err != nil {
		return err
	}
	for i := range result.Records {
		u.qc.Add(result.Records[i])
	}
	u.sources = append(u.sources, result.Meta.FileName)
	return nil
}

// Rows returns the number of records appended
func (u *Unifier) Rows() int64 {
	return u.writer.Rows()
}

// Sources returns the workbook names that contributed rows, in append order
func (u *Unifier) Sources() []string {
	return u.sources
}

// QC returns the quality summary of everything appended so far
func (u *Unifier) QC() []domain.QCRow {
	return u.qc.Rows()
}

// Close finalises the Parquet file
func (u *Unifier) Close() error {
	return u.writer.Close()
}

// Abort discards the partial file
func (u *Unifier) Abort() {
	u.writer.Abort()
}

// Unify concatenates in-memory extracts in the order given
func Unify(results []*extract.Result) []domain.FactRecord {
	total := 0
	for _, r := range results {
		total += len(r.Records)
	}
	out := make([]domain.FactRecord, 0, total)
	for _, r := range results {
		out = append(out, r.Records...)
	}
	return out
}

type qcKey struct {
	fy     string
	sector string
}

type qcGroup struct {
	rows  int64
	nulls int64
	sum   decimal.Decimal
}

// QCAccumulator sums rows, null amounts and the exact amount total per fy and sector
type QCAccumulator struct {
	groups map[qcKey]*qcGroup
}

// NewQCAccumulator creates an empty accumulator
func NewQCAccumulator() *QCAccumulator {
	return &QCAccumulator{groups: make(map[qcKey]*qcGroup)}
}

// Add counts one record
func (q *QCAccumulator) Add(r domain.FactRecord) {
	k := qcKey{fy: r.FY, sector: r.Sector}
	g, ok := q.groups[k]
	if !ok {
		g = &qcGroup{}
		q.groups[k] = g
	}
	g.rows++
	if r.Amount == nil {
		g.nulls++
		return
	}
	g.sum = g.sum.Add(decimal.NewFromFloat(*r.Amount))
}

// Rows returns the summary ordered by fy then sector
func (q *QCAccumulator) Rows() []domain.QCRow {
	out := make([]domain.QCRow, 0, len(q.groups))
	for k, g := range q.groups {
		out = append(out, domain.QCRow{
			FY:          k.fy,
			Sector:      k.sector,
			Rows:        g.rows,
			NullAmounts: g.nulls,
			TotalAmount: g.sum,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FY != out[j].FY {
			return out[i].FY < out[j].FY
		}
		return out[i].Sector < out[j].Sector
	})
	return out
}

// SummarizeQC builds the quality summary of a record set
func SummarizeQC(records []domain.FactRecord) []domain.QCRow {
	q := NewQCAccumulator()
	for i := range records {
		q.Add(records[i])
	}
	return q.Rows()
}
