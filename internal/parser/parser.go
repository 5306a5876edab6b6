// Package parser turns a BBC Weather forecast page into a WeatherData record.
//
// The page embeds its forecast as a JSON object inside an inline script. The
// parser finds that object with a string-aware brace scan, decodes and checks
// it against the payload schema, and merges the per-day forecasts into one
// hourly series and one daily-summary series. It performs no I/O and keeps no
// state between calls, so a single Parser may be shared across goroutines.
package parser

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/kjstillabower/bbc-weather-scraper/internal/models"
	"github.com/kjstillabower/bbc-weather-scraper/internal/scrapeerr"
)

// Parser extracts forecasts from page markup.
type Parser struct {
	now func() time.Time
}

// Option configures a Parser.
type Option func(*Parser)

// WithClock sets the clock used when a response has no detailed forecast to
// take an update time from.
func WithClock(now func() time.Time) Option {
	return func(p *Parser) { p.now = now }
}

// New returns a Parser.
func New(opts ...Option) *Parser {
	p := &Parser{now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse extracts, validates and normalises the forecast embedded in markup.
// locationName is copied into the result as-is.
//
// Data extraction and validation errors are returned unchanged. Anything else
// that goes wrong, including a panic, is reported as a parser error.
func (p *Parser) Parse(markup string, locationName string) (data models.WeatherData, err error) {
	defer func() {
		if r := recover(); r != nil {
			data = models.WeatherData{}
			err = scrapeerr.Parser("failed to parse BBC Weather HTML", fmt.Errorf("panic: %v", r))
		}
	}()

	data, err = p.parse(markup, locationName)
	if err != nil && !errors.Is(err, scrapeerr.ErrDataExtraction) && !errors.Is(err, scrapeerr.ErrValidation) {
		return models.WeatherData{}, scrapeerr.Parser("failed to parse BBC Weather HTML", err)
	}
	return data, err
}

func (p *Parser) parse(markup string, locationName string) (models.WeatherData, error) {
	resp, err := p.ExtractRaw(markup)
	if err != nil {
		return models.WeatherData{}, err
	}
	if err := Validate(resp); err != nil {
		return models.WeatherData{}, err
	}
	return Normalize(resp, locationName, p.now), nil
}

// ExtractRaw locates and decodes the embedded payload without validating or
// merging it. Every failure is a data extraction error.
func (p *Parser) ExtractRaw(markup string) (*models.Response, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, scrapeerr.DataExtraction("failed to read HTML", err)
	}

	candidate, ok := locatePayload(doc)
	if !ok {
		return nil, scrapeerr.DataExtraction("could not find weather JSON data in HTML", nil)
	}

	resp, err := decodePayload(candidate)
	if err != nil {
		return nil, scrapeerr.DataExtraction("failed to extract JSON from HTML", err)
	}
	return resp, nil
}
