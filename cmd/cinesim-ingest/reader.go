package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"
)

// maxLineBytes bounds one JSONL record. A 4096-dim float vector fits comfortably.
const maxLineBytes = 4 << 20

// embeddingRecord is one row of a per-axis export: the embedding of a title and the
// text it was computed from.
type embeddingRecord struct {
	ID        string    `json:"id,omitempty"       parquet:"id,optional"`
	Title     string    `json:"title"              parquet:"title"`
	Embedding []float32 `json:"embedding"          parquet:"embedding,list"`
	Document  string    `json:"document,omitempty" parquet:"document,optional"`
}

// recordCallback receives each record in file order. Returning false stops the read.
type recordCallback func(rec embeddingRecord, line int) bool

// readRecords streams an export file (.jsonl or .parquet) through cb.
func readRecords(path string, cb recordCallback) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson":
		return readJSONL(path, cb)
	case ".parquet":
		return readParquet(path, cb)
	default:
		return fmt.Errorf("unsupported export format: %s", path)
	}
}

func readJSONL(path string, cb recordCallback) error {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer func() { _ = f.Close() }()
	return scanJSONL(f, cb)
}

func scanJSONL(r io.Reader, cb recordCallback) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64<<10), maxLineBytes)
	line := 0
	for sc.Scan() {
		line++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}
		var rec embeddingRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if !cb(rec, line) {
			return nil
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	return nil
}

// readParquet reads row groups in batches so large exports are never fully in memory.
func readParquet(path string, cb recordCallback) error {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer func() { _ = f.Close() }()

	r := parquet.NewGenericReader[embeddingRecord](f)
	defer func() { _ = r.Close() }()

	buf := make([]embeddingRecord, 256)
	row := 0
	for {
		n, readErr := r.Read(buf)
		for i := range n {
			row++
			if !cb(buf[i], row) {
				return nil
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return nil
			}
			return fmt.Errorf("read rows: %w", readErr)
		}
	}
}

// loadAxis reads an optional export fully, keyed by normalized title.
// Later rows for the same title win. An empty path yields an empty map.
func loadAxis(path string) (map[string]embeddingRecord, error) {
	out := make(map[string]embeddingRecord)
	if path == "" {
		return out, nil
	}
	err := readRecords(path, func(rec embeddingRecord, _ int) bool {
		if key := titleKey(rec.Title); key != "" && len(rec.Embedding) > 0 {
			out[key] = rec
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return out, nil
}

func titleKey(title string) string {
	return strings.ToLower(strings.Join(strings.Fields(title), " "))
}
