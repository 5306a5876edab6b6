package parser

import (
	"time"

	"github.com/kjstillabower/bbc-weather-scraper/internal/models"
	"github.com/kjstillabower/bbc-weather-scraper/internal/scrapeerr"
)

const noForecastDataMsg = "BBC Weather response validation failed: no forecast data"

// Validate requires at least one daily forecast and at least one non-empty
// detailed report list among them.
func Validate(resp *models.Response) error {
	if resp == nil || len(resp.Data.Forecasts) == 0 {
		return scrapeerr.Validation(noForecastDataMsg, nil)
	}
	for _, f := range resp.Data.Forecasts {
		if f.Detailed != nil && len(f.Detailed.Reports) > 0 {
			return nil
		}
	}
	return scrapeerr.Validation(noForecastDataMsg, nil)
}

// Normalize flattens a response into one WeatherData record.
//
// Hourly and summary reports are concatenated in forecast-list order with no
// sorting or de-duplication. LastUpdated is the latest LastUpdated among the
// detailed halves that contributed reports; now is consulted only when none did.
func Normalize(resp *models.Response, locationName string, now func() time.Time) models.WeatherData {
	var (
		hourly      []models.HourlyReport
		summaries   []models.SummaryReport
		lastUpdated time.Time
		haveUpdated bool
	)

	for _, f := range resp.Data.Forecasts {
		if f.Detailed == nil || len(f.Detailed.Reports) == 0 {
			continue
		}
		hourly = append(hourly, f.Detailed.Reports...)
		if !haveUpdated || f.Detailed.LastUpdated.After(lastUpdated) {
			lastUpdated = f.Detailed.LastUpdated
			haveUpdated = true
		}
	}
	if !haveUpdated {
		lastUpdated = now().UTC()
	}

	for _, f := range resp.Data.Forecasts {
		if f.Summary != nil && len(f.Summary.Reports) > 0 {
			summaries = append(summaries, f.Summary.Reports...)
		}
	}

	data := models.WeatherData{
		LocationID:     resp.Options.LocationID,
		LocationName:   locationName,
		LastUpdated:    lastUpdated,
		HourlyForecast: hourly,
		DailySummaries: summaries,
	}
	if len(hourly) > 0 {
		current := hourly[0]
		data.CurrentConditions = &current
	}
	return data
}
