// Package storage writes scrape results to disk as JSON or CSV.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/bbc-weather-scraper/internal/models"
	"github.com/kjstillabower/bbc-weather-scraper/internal/observability"
	"github.com/kjstillabower/bbc-weather-scraper/internal/scrapeerr"
)

// Output formats accepted by New.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// Store persists WeatherData. Every failure is a storage error.
type Store interface {
	// Save writes data under the store's directory and returns the file path.
	// An empty filename gets a generated one; the format extension is
	// appended when missing.
	Save(data models.WeatherData, filename string) (string, error)
	Load(path string) (models.WeatherData, error)
	Format() string
}

// New returns the store for format, creating dir if needed.
func New(format, dir string, logger *zap.Logger) (Store, error) {
	switch format {
	case FormatJSON, FormatCSV:
	default:
		return nil, scrapeerr.Storage(fmt.Sprintf("unknown storage format %q (want %s or %s)", format, FormatJSON, FormatCSV), nil)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, scrapeerr.Storage(fmt.Sprintf("create output directory %s", dir), err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	base := baseStore{format: format, dir: dir, logger: logger, now: time.Now}
	if format == FormatCSV {
		return &CSVStore{baseStore: base}, nil
	}
	return &JSONStore{baseStore: base}, nil
}

type baseStore struct {
	format string
	dir    string
	logger *zap.Logger
	now    func() time.Time
}

func (b baseStore) Format() string { return b.format }

// path resolves filename inside the output directory.
func (b baseStore) path(data models.WeatherData, filename string) string {
	if filename == "" {
		filename = DefaultFilename(data, b.now())
	}
	ext := "." + b.format
	if !strings.HasSuffix(filename, ext) {
		filename += ext
	}
	return filepath.Join(b.dir, filename)
}

func (b baseStore) recordWrite(path string, err error) {
	if err != nil {
		observability.StorageWritesTotal.WithLabelValues(b.format, "error").Inc()
		b.logger.Error("failed to save weather data",
			zap.String("format", b.format),
			zap.String("path", path),
			zap.Error(err),
		)
		return
	}
	observability.StorageWritesTotal.WithLabelValues(b.format, "success").Inc()
	b.logger.Info("weather data saved", zap.String("format", b.format), zap.String("path", path))
}

// DefaultFilename returns weather_<name>_<YYYYmmdd_HHMMSS> without extension.
// The name is the display name lowercased, with spaces and path separators
// replaced by underscores so it always names a file inside the output dir.
func DefaultFilename(data models.WeatherData, now time.Time) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '/', '\\':
			return '_'
		}
		return r
	}, strings.ToLower(data.DisplayName()))
	return fmt.Sprintf("weather_%s_%s", name, now.Format("20060102_150405"))
}
