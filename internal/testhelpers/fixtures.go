// Package testhelpers builds BBC Weather page fixtures for tests across packages.
package testhelpers

import (
	"encoding/json"
	"fmt"
)

// FixtureLastUpdated is the lastUpdated value of the second (latest) day in ForecastPage.
const FixtureLastUpdated = "2024-01-16T09:30:00Z"

// ForecastPage returns a page embedding a two-day forecast for locationID:
// two hourly reports per day and one summary per day. An empty placeName
// leaves the title unbranded.
func ForecastPage(locationID, placeName string) string {
	title := "BBC Weather"
	if placeName != "" {
		title = placeName + " - BBC Weather"
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en-GB">
<head><title>%s</title><script src="/wc-bundle.js"></script></head>
<body>
<div id="wr-forecast"></div>
<script>window.__analytics = {"page": "forecast"};</script>
<script>window.__INITIAL_DATA__ = %s;</script>
</body>
</html>`, title, Payload(locationID))
}

// Payload returns the embedded JSON object used by ForecastPage.
func Payload(locationID string) string {
	days := []map[string]any{
		day("2024-01-15T10:00:00Z", "2024-01-15", []string{"10:00", "11:00"}),
		day(FixtureLastUpdated, "2024-01-16", []string{"00:00", "01:00"}),
	}
	raw, err := json.Marshal(map[string]any{
		"options": map[string]any{"location_id": locationID, "day": "none", "locale": "en"},
		"data":    map[string]any{"forecasts": days},
	})
	if err != nil {
		panic(err)
	}
	return string(raw)
}

func day(lastUpdated, date string, slots []string) map[string]any {
	reports := make([]map[string]any, 0, len(slots))
	for i, slot := range slots {
		reports = append(reports, hour(date, slot, 70+i))
	}
	return map[string]any{
		"detailed": map[string]any{
			"issueDate":   lastUpdated,
			"lastUpdated": lastUpdated,
			"reports":     reports,
		},
		"summary": map[string]any{
			"reports": []map[string]any{{
				"localDate":       date,
				"temperatureC":    9,
				"temperatureF":    48,
				"weatherTypeText": "Light Cloud",
			}},
		},
	}
}

func hour(date, slot string, humidity int) map[string]any {
	return map[string]any{
		"localDate":                         date,
		"timeslot":                          slot,
		"timeslotLength":                    1,
		"temperatureC":                      8,
		"temperatureF":                      46,
		"feelsLikeTemperatureC":             6,
		"feelsLikeTemperatureF":             43,
		"enhancedWeatherDescription":        "Light cloud and a moderate breeze",
		"weatherType":                       7,
		"weatherTypeText":                   "Light Cloud",
		"extendedWeatherType":               7,
		"precipitationProbabilityInPercent": 10,
		"precipitationProbabilityText":      "Precipitation is not expected",
		"windSpeedKph":                      19,
		"windSpeedMph":                      12,
		"gustSpeedKph":                      32,
		"gustSpeedMph":                      20,
		"windDirection":                     "W",
		"windDirectionAbbreviation":         "WSW",
		"windDirectionFull":                 "Westerly",
		"windDescription":                   "12mph from the west",
		"humidity":                          humidity,
		"pressure":                          1015,
		"visibility":                        "Very Good",
	}
}
