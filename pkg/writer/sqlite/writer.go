// Package sqlite provides SQLite database writing for feature tables and the
// intermediate peaks and scans behind them
package sqlite

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ChrisMcGann/msalign/pkg/core"
)

const (
	// Date format for RunTable (ISO 8601)
	runDateFormat = "2006-01-02"
	// Schema version written to RunTable
	schemaVersion = 1
)

// Writer handles writing pipeline results to SQLite database files
type Writer struct {
	db          *sql.DB
	outputPath  string
	featureStmt *sql.Stmt
	peakStmt    *sql.Stmt
	sampleStmt  *sql.Stmt
	scanStmt    *sql.Stmt
	featureID   int
	peakID      int
	sampleID    int
	config      []byte
	closed      bool
}

// NewWriter creates a new SQLite writer. An existing file at outputPath is
// replaced.
func NewWriter(outputPath string) (*Writer, error) {
	if err := os.Remove(outputPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to replace existing database: %w", err)
	}

	db, err := sql.Open("sqlite3", outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	w := &Writer{
		db:         db,
		outputPath: outputPath,
		featureID:  1,
		peakID:     1,
		sampleID:   1,
	}

	if err := w.createTables(); err != nil {
		db.Close()
		return nil, err
	}

	if err := w.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}

	return w, nil
}

// createTables creates the required database schema
func (w *Writer) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS FeatureTable (
		FeatureId INTEGER PRIMARY KEY,
		RetentionTime DOUBLE,
		Intensity DOUBLE,
		MZ DOUBLE
	);

	CREATE TABLE IF NOT EXISTS SampleTable (
		SampleId INTEGER PRIMARY KEY,
		Name TEXT,
		ScanCount INTEGER,
		PeakCount INTEGER,
		WarningCount INTEGER
	);

	CREATE TABLE IF NOT EXISTS ScanTable (
		ScanId TEXT PRIMARY KEY,
		SampleId INTEGER REFERENCES SampleTable(SampleId),
		RetentionTime DOUBLE,
		blobMass BLOB,
		blobIntensity BLOB
	);

	CREATE TABLE IF NOT EXISTS PeakTable (
		PeakId INTEGER PRIMARY KEY,
		Stage TEXT,
		ScanId TEXT,
		ScanIndex INTEGER,
		RetentionTime DOUBLE,
		Intensity DOUBLE,
		MZ DOUBLE
	);

	CREATE TABLE IF NOT EXISTS RunTable (
		version INTEGER NOT NULL DEFAULT 0,
		CreationDate TEXT,
		Config TEXT,
		FeatureCount INTEGER,
		SampleCount INTEGER
	);
	`

	_, err := w.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	return nil
}

// prepareStatements prepares SQL statements for batch insertion
func (w *Writer) prepareStatements() error {
	var err error

	w.featureStmt, err = w.db.Prepare(`
		INSERT INTO FeatureTable (FeatureId, RetentionTime, Intensity, MZ)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare feature statement: %w", err)
	}

	w.peakStmt, err = w.db.Prepare(`
		INSERT INTO PeakTable (PeakId, Stage, ScanId, ScanIndex, RetentionTime, Intensity, MZ)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare peak statement: %w", err)
	}

	w.sampleStmt, err = w.db.Prepare(`
		INSERT INTO SampleTable (SampleId, Name, ScanCount, PeakCount, WarningCount)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare sample statement: %w", err)
	}

	w.scanStmt, err = w.db.Prepare(`
		INSERT INTO ScanTable (ScanId, SampleId, RetentionTime, blobMass, blobIntensity)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare scan statement: %w", err)
	}

	return nil
}

// SetConfig records the run configuration, stored as JSON in RunTable on
// Finalize
func (w *Writer) SetConfig(cfg any) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	w.config = data
	return nil
}

// WriteFeatures writes the feature table in a single transaction
func (w *Writer) WriteFeatures(features []core.Feature) error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	stmt := tx.Stmt(w.featureStmt)
	for _, f := range features {
		if _, err := stmt.Exec(w.featureID, f.RetentionTime, f.Intensity, f.MZ); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert feature: %w", err)
		}
		w.featureID++
	}
	return tx.Commit()
}

// WritePeaks writes peaks tagged with the processing stage they come from
// (for example "aligned" or "normalized")
func (w *Writer) WritePeaks(stage string, peaks []core.Peak) error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	stmt := tx.Stmt(w.peakStmt)
	for _, p := range peaks {
		_, err := stmt.Exec(
			w.peakID,        // PeakId
			stage,           // Stage
			p.ScanID,        // ScanId
			p.Index,         // ScanIndex
			p.RetentionTime, // RetentionTime
			p.Intensity,     // Intensity
			p.MZ,            // MZ
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert peak: %w", err)
		}
		w.peakID++
	}
	return tx.Commit()
}

// WriteSample writes a sample and its conditioned scans. Scan arrays are
// stored as little-endian float64 blobs.
func (w *Writer) WriteSample(s *core.Sample) error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	scans := s.Scans()
	if _, err := tx.Stmt(w.sampleStmt).Exec(w.sampleID, s.Name, len(scans), s.PeakCount(), len(s.Warnings())); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to insert sample: %w", err)
	}

	stmt := tx.Stmt(w.scanStmt)
	for _, scan := range scans {
		_, err := stmt.Exec(
			scan.ID,
			w.sampleID,
			scan.RetentionTime,
			encodeFloat64(scan.MZ()),
			encodeFloat64(scan.Intensity()),
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert scan: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	w.sampleID++
	return nil
}

// encodeFloat64 encodes values as a little-endian float64 blob
func encodeFloat64(values []float64) []byte {
	buf := make([]byte, len(values)*8)
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

// DecodeFloat64 decodes a blob written by the writer
func DecodeFloat64(blob []byte) []float64 {
	values := make([]float64, len(blob)/8)
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(blob[i*8:]))
	}
	return values
}

// Finalize writes the run table and closes the database. A database without
// a RunTable row is an incomplete run.
func (w *Writer) Finalize() error {
	if w.closed {
		return fmt.Errorf("database %s already closed", w.outputPath)
	}

	var config any
	if w.config != nil {
		config = string(w.config)
	}
	_, err := w.db.Exec(`
		INSERT INTO RunTable (version, CreationDate, Config, FeatureCount, SampleCount)
		VALUES (?, ?, ?, ?, ?)
	`, schemaVersion, time.Now().Format(runDateFormat), config, w.featureID-1, w.sampleID-1)
	if err != nil {
		w.Abort()
		return fmt.Errorf("failed to insert run: %w", err)
	}

	return w.Abort()
}

// Abort closes the prepared statements and the database without writing the
// run table. It is a no-op after Finalize.
func (w *Writer) Abort() error {
	if w.closed {
		return nil
	}
	w.closed = true

	// Close prepared statements
	for _, stmt := range []*sql.Stmt{w.featureStmt, w.peakStmt, w.sampleStmt, w.scanStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}

	// Close database
	if err := w.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}

// Close closes the database connection (alias for Abort). Call Finalize to
// complete a run.
func (w *Writer) Close() error {
	return w.Abort()
}
