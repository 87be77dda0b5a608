package canonical

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"nhstac/pkg/contracts/domain"
)

// ParquetWriter streams fact records into a Parquet file.
// The file only appears at its final path after Close succeeds.
type ParquetWriter struct {
	path   string
	file   *os.File
	writer *parquet.GenericWriter[domain.FactRecord]
	rows   int64
}

// NewParquetWriter creates a writer for path, replacing any existing file on Close
func NewParquetWriter(path string) (*ParquetWriter, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}

	return &ParquetWriter{
		path:   path,
		file:   f,
		writer: parquet.NewGenericWriter[domain.FactRecord](f, parquet.Compression(&parquet.Snappy)),
	}, nil
}

// Write appends records to the file
func (w *ParquetWriter) Write(records []domain.FactRecord) error {
	if len(records) == 0 {
		return nil
	}
	n, err := w.writer.Write(records)
	w.rows += int64(n)
	if err != nil {
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	return nil
}

// Rows returns the number of rows written so far
func (w *ParquetWriter) Rows() int64 {
	return w.rows
}

// Close flushes the footer and moves the file into place
func (w *ParquetWriter) Close() error {
	tmp := w.file.Name()
	if err := w.writer.Close(); err != nil {
		w.file.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to finalise parquet file: %w", err)
	}
	if err := w.file.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close parquet file: %w", err)
	}
	if err := os.Rename(tmp, w.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", w.path, err)
	}
	return nil
}

// Abort discards the partially written file
func (w *ParquetWriter) Abort() {
	w.file.Close()
	os.Remove(w.file.Name())
}

// WriteParquet writes records to path in one go
func WriteParquet(path string, records []domain.FactRecord) error {
	w, err := NewParquetWriter(path)
	if err != nil {
		return err
	}
	if err := w.Write(records); err != nil {
		w.Abort()
		return err
	}
	return w.Close()
}

// ReadParquet loads every record of a fact Parquet file
func ReadParquet(path string) ([]domain.FactRecord, error) {
	records, err := parquet.ReadFile[domain.FactRecord](path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return records, nil
}
