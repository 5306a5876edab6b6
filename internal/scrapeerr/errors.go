// Package scrapeerr defines the error kinds shared by the fetch, parse and
// storage stages. Every kind descends from ErrScrape so callers can match
// broadly or narrowly with errors.Is.
package scrapeerr

import "errors"

var (
	ErrScrape           = errors.New("weather scraper error")
	ErrBrowser          = errors.New("browser error")
	ErrParser           = errors.New("parser error")
	ErrDataExtraction   = errors.New("data extraction error")
	ErrValidation       = errors.New("validation error")
	ErrStorage          = errors.New("storage error")
	ErrLocationNotFound = errors.New("location not found")
)

// parents maps each kind to the kind it specialises.
var parents = map[error]error{
	ErrBrowser:          ErrScrape,
	ErrParser:           ErrScrape,
	ErrDataExtraction:   ErrParser,
	ErrValidation:       ErrScrape,
	ErrStorage:          ErrScrape,
	ErrLocationNotFound: ErrScrape,
}

// Error carries a kind, a message and an optional cause.
type Error struct {
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is e's kind or one of its ancestors.
func (e *Error) Is(target error) bool {
	for k := e.Kind; k != nil; k = parents[k] {
		if k == target {
			return true
		}
	}
	return false
}

func newError(kind error, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

// Browser reports a fetch, navigation or page retrieval failure.
func Browser(msg string, cause error) error { return newError(ErrBrowser, msg, cause) }

// Parser reports a generic parse-stage failure.
func Parser(msg string, cause error) error { return newError(ErrParser, msg, cause) }

// DataExtraction reports a payload that could not be located or decoded.
func DataExtraction(msg string, cause error) error {
	return newError(ErrDataExtraction, msg, cause)
}

// Validation reports a payload that decoded but carries no usable forecast.
func Validation(msg string, cause error) error { return newError(ErrValidation, msg, cause) }

func Storage(msg string, cause error) error { return newError(ErrStorage, msg, cause) }

func LocationNotFound(msg string, cause error) error {
	return newError(ErrLocationNotFound, msg, cause)
}
