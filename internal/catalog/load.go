package catalog

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cinesim/internal/domain/item"
)

// ErrUnsupportedFormat is returned for catalog files with an unknown extension.
var ErrUnsupportedFormat = errors.New("unsupported catalog format")

// Record is one catalog row as stored in JSON and parquet files.
type Record struct {
	ID          string   `json:"id,omitempty"          parquet:"id,optional"`
	Title       string   `json:"title"                 parquet:"title"`
	Description string   `json:"description,omitempty" parquet:"description,optional"`
	Year        int      `json:"year,omitempty"        parquet:"year,optional"`
	Genres      []string `json:"genres,omitempty"      parquet:"genres,list"`
	Trailer     string   `json:"trailer,omitempty"     parquet:"trailer,optional"`
	// YouTubeLink is accepted as an alias of Trailer in JSON files.
	YouTubeLink string `json:"youtube_link,omitempty" parquet:"-"`
}

// Item validates the record into an item.
func (r Record) Item() (item.Item, error) {
	trailer := r.Trailer
	if trailer == "" {
		trailer = r.YouTubeLink
	}
	return item.New(strings.TrimSpace(r.ID), r.Title, r.Genres, r.Description, r.Year, trailer)
}

// CSV column names of the enriched movie list.
const (
	colTitle   = "Movie Title"
	colTrailer = "YouTube Link"
	colIMDbID  = "imdbID"
	colYear    = "Year"
	colGenre   = "Genre"
	colPlot    = "Plot"
)

// Load reads a catalog file. Any failure yields an empty catalog and a warning,
// so the service still starts without metadata.
func Load(path string, logger *zap.Logger) *Catalog {
	if path == "" {
		logger.Warn("Catalog path not configured, starting with an empty catalog")
		return New(nil)
	}
	items, err := Read(path, logger)
	if err != nil {
		logger.Warn("Catalog load failed, starting with an empty catalog",
			zap.String("path", path), zap.Error(err))
		return New(nil)
	}
	c := New(items)
	logger.Info("Catalog loaded", zap.String("path", path), zap.Int("items", c.Len()))
	return c
}

// Read parses a catalog file by extension. Invalid rows are skipped with a warning.
func Read(path string, logger *zap.Logger) ([]item.Item, error) {
	var (
		records []Record
		err     error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		records, err = readJSON(path)
	case ".csv":
		records, err = readCSV(path)
	case ".parquet":
		records, err = parquet.ReadFile[Record](path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return toItems(records, logger), nil
}

func toItems(records []Record, logger *zap.Logger) []item.Item {
	items := make([]item.Item, 0, len(records))
	for i, r := range records {
		it, err := r.Item()
		if err != nil {
			logger.Warn("Skipping invalid catalog row", zap.Int("row", i), zap.Error(err))
			continue
		}
		items = append(items, it)
	}
	return items
}

func readJSON(path string) ([]Record, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err //nolint:wrapcheck // wrapped by Read
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return records, nil
}

func readCSV(path string) ([]Record, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err //nolint:wrapcheck // wrapped by Read
	}
	defer func() { _ = f.Close() }()
	return parseCSV(f)
}

// parseCSV reads the enriched movie list: Movie Title, YouTube Link, imdbID, Year, Genre, Plot.
// Only the title column is required.
func parseCSV(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	if _, ok := cols[colTitle]; !ok {
		return nil, fmt.Errorf("csv has no %q column", colTitle)
	}

	get := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		v := strings.TrimSpace(row[i])
		if v == "N/A" {
			return ""
		}
		return v
	}

	var records []Record
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		rec := Record{
			ID:          get(row, colIMDbID),
			Title:       get(row, colTitle),
			Description: get(row, colPlot),
			Trailer:     get(row, colTrailer),
			Year:        parseYear(get(row, colYear)),
		}
		for _, g := range strings.Split(get(row, colGenre), ",") {
			if g = strings.TrimSpace(g); g != "" {
				rec.Genres = append(rec.Genres, g)
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// parseYear reads the leading four digits, so "2010–2012" yields 2010.
func parseYear(s string) int {
	if len(s) < 4 {
		return 0
	}
	y, err := strconv.Atoi(s[:4])
	if err != nil {
		return 0
	}
	return y
}
