// Package locations maps the supported city names to BBC Weather location ids.
package locations

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kjstillabower/bbc-weather-scraper/internal/models"
	"github.com/kjstillabower/bbc-weather-scraper/internal/scrapeerr"
)

const country = "United Kingdom"

var known = map[string]string{
	"london":     "2643743",
	"manchester": "2643123",
	"birmingham": "2655603",
	"edinburgh":  "2650225",
	"glasgow":    "2648579",
	"cardiff":    "2653822",
	"liverpool":  "2644210",
	"bristol":    "2654675",
	"leeds":      "2644688",
	"sheffield":  "2638077",
}

// Lookup returns the location for a city name, ignoring case and
// surrounding whitespace.
func Lookup(name string) (models.Location, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	id, ok := known[key]
	if !ok {
		return models.Location{}, scrapeerr.LocationNotFound(
			fmt.Sprintf("unknown location %q, available: %s", name, strings.Join(Names(), ", ")), nil)
	}
	return models.Location{ID: id, Name: titleCase(key), Country: country}, nil
}

// ByID returns the known location with the given id. ok is false for ids
// outside the table.
func ByID(id string) (models.Location, bool) {
	for name, knownID := range known {
		if knownID == id {
			return models.Location{ID: id, Name: titleCase(name), Country: country}, true
		}
	}
	return models.Location{}, false
}

// Names lists the known city names in lower case, sorted.
func Names() []string {
	names := make([]string, 0, len(known))
	for name := range known {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
