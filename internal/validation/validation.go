// Package validation checks user-supplied locations before any page is fetched.
package validation

import (
	"errors"
	"strings"
	"unicode"

	"github.com/kjstillabower/bbc-weather-scraper/internal/locations"
	"github.com/kjstillabower/bbc-weather-scraper/internal/models"
)

// Default length bounds for location names, in runes.
const (
	DefaultMinLength = 2
	DefaultMaxLength = 64
)

// maxLocationIDDigits bounds numeric BBC Weather (GeoNames) ids.
const maxLocationIDDigits = 12

var (
	ErrLocationEmpty        = errors.New("location is required")
	ErrLocationTooShort     = errors.New("location too short")
	ErrLocationTooLong      = errors.New("location too long")
	ErrLocationInvalidChars = errors.New("location contains invalid characters")
	ErrLocationIDInvalid    = errors.New("location id must be 1-12 digits")
)

// ValidateLocation trims the input, enforces length bounds (minLen, maxLen in
// runes) and allows letters, digits, space, comma, hyphen and apostrophe.
// Returns the trimmed string.
func ValidateLocation(input string, minLen, maxLen int) (string, error) {
	s := strings.TrimSpace(input)
	r := []rune(s)
	n := len(r)
	if n == 0 {
		return "", ErrLocationEmpty
	}
	if minLen > 0 && n < minLen {
		return "", ErrLocationTooShort
	}
	if maxLen > 0 && n > maxLen {
		return "", ErrLocationTooLong
	}
	for _, c := range r {
		if !isAllowedLocationRune(c) {
			return "", ErrLocationInvalidChars
		}
	}
	return s, nil
}

// ValidateLocationID trims the input and requires 1-12 ASCII digits.
func ValidateLocationID(input string) (string, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", ErrLocationEmpty
	}
	if len(s) > maxLocationIDDigits || !isDigits(s) {
		return "", ErrLocationIDInvalid
	}
	return s, nil
}

// ParseLocation turns a path segment or flag value into a Location. All-digit
// input is taken as a location id (named when it is a known city); anything
// else must be a known city name. Malformed input returns one of the Err*
// sentinels; a well-formed unknown name returns a location-not-found error.
func ParseLocation(input string, minLen, maxLen int) (models.Location, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed != "" && isDigits(trimmed) {
		id, err := ValidateLocationID(trimmed)
		if err != nil {
			return models.Location{}, err
		}
		if loc, ok := locations.ByID(id); ok {
			return loc, nil
		}
		return models.Location{ID: id}, nil
	}

	name, err := ValidateLocation(input, minLen, maxLen)
	if err != nil {
		return models.Location{}, err
	}
	return locations.Lookup(name)
}

// IsInvalid reports whether err is one of the malformed-input sentinels.
func IsInvalid(err error) bool {
	return errors.Is(err, ErrLocationEmpty) ||
		errors.Is(err, ErrLocationTooShort) ||
		errors.Is(err, ErrLocationTooLong) ||
		errors.Is(err, ErrLocationInvalidChars) ||
		errors.Is(err, ErrLocationIDInvalid)
}

func isAllowedLocationRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) {
		return true
	}
	switch r {
	case ' ', ',', '-', '\'':
		return true
	}
	return false
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
