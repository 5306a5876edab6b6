package client

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/kjstillabower/bbc-weather-scraper/internal/scrapeerr"
)

// FileFetcher serves saved pages from <dir>/<locationID>.html. It lets the
// scraper run offline against captured snapshots.
type FileFetcher struct {
	dir string
}

func NewFileFetcher(dir string) *FileFetcher {
	return &FileFetcher{dir: dir}
}

// Initialize checks that the snapshot directory exists.
func (f *FileFetcher) Initialize(ctx context.Context) error {
	if f.dir == "" {
		return scrapeerr.Browser("snapshot directory not configured", nil)
	}
	info, err := os.Stat(f.dir)
	if err != nil {
		return scrapeerr.Browser(fmt.Sprintf("snapshot directory %s", f.dir), err)
	}
	if !info.IsDir() {
		return scrapeerr.Browser(fmt.Sprintf("snapshot path %s is not a directory", f.dir), nil)
	}
	return nil
}

func (f *FileFetcher) Fetch(ctx context.Context, locationID string) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, scrapeerr.Browser("page fetch cancelled", err)
	}
	if locationID == "" || strings.ContainsAny(locationID, `/\`) || locationID == "." || locationID == ".." {
		return Page{}, scrapeerr.LocationNotFound(fmt.Sprintf("invalid location id %q", locationID), nil)
	}

	path := filepath.Join(f.dir, locationID+".html")
	body, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Page{}, scrapeerr.LocationNotFound(fmt.Sprintf("no snapshot for location %s", locationID), err)
	}
	if err != nil {
		return Page{}, scrapeerr.Browser(fmt.Sprintf("read snapshot %s", path), err)
	}

	return Page{URL: "file://" + filepath.ToSlash(path), StatusCode: 200, HTML: string(body)}, nil
}

func (f *FileFetcher) Close() error { return nil }
