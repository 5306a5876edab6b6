package models

import (
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar date without a time zone. JSON form is YYYY-MM-DD.
type Date struct {
	time.Time
}

// NewDate returns the date for year, month and day at UTC midnight.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{t}, nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// HourlyReport is one hour-granularity forecast point.
type HourlyReport struct {
	LocalDate      Date   `json:"local_date"`
	Timeslot       string `json:"timeslot"`
	TimeslotLength int    `json:"timeslot_length"`

	TemperatureC          int `json:"temperature_c"`
	TemperatureF          int `json:"temperature_f"`
	FeelsLikeTemperatureC int `json:"feels_like_temperature_c"`
	FeelsLikeTemperatureF int `json:"feels_like_temperature_f"`

	EnhancedWeatherDescription string `json:"enhanced_weather_description"`
	WeatherType                int    `json:"weather_type"`
	WeatherTypeText            string `json:"weather_type_text"`
	ExtendedWeatherType        int    `json:"extended_weather_type"`

	PrecipitationProbabilityPercent int    `json:"precipitation_probability_percent"`
	PrecipitationProbabilityText    string `json:"precipitation_probability_text"`

	WindSpeedKph              int    `json:"wind_speed_kph"`
	WindSpeedMph              int    `json:"wind_speed_mph"`
	GustSpeedKph              int    `json:"gust_speed_kph"`
	GustSpeedMph              int    `json:"gust_speed_mph"`
	WindDirection             string `json:"wind_direction"`
	WindDirectionAbbreviation string `json:"wind_direction_abbreviation"`
	WindDirectionFull         string `json:"wind_direction_full"`
	WindDescription           string `json:"wind_description"`

	Humidity   int    `json:"humidity"`
	Pressure   int    `json:"pressure"` // millibars
	Visibility string `json:"visibility"`
}

// SummaryReport is a daily-granularity partial record. Summary payloads are
// sparser than detailed ones, so every measurement is optional.
type SummaryReport struct {
	LocalDate                  Date    `json:"local_date"`
	TemperatureC               *int    `json:"temperature_c,omitempty"`
	TemperatureF               *int    `json:"temperature_f,omitempty"`
	EnhancedWeatherDescription *string `json:"enhanced_weather_description,omitempty"`
	WeatherTypeText            *string `json:"weather_type_text,omitempty"`
	WindSpeedKph               *int    `json:"wind_speed_kph,omitempty"`
	WindSpeedMph               *int    `json:"wind_speed_mph,omitempty"`
	Humidity                   *int    `json:"humidity,omitempty"`
	Pressure                   *int    `json:"pressure,omitempty"`
	Visibility                 *string `json:"visibility,omitempty"`
}

// DetailedForecast is the hourly half of a day's forecast. Reports keep the
// order they were received in.
type DetailedForecast struct {
	IssueDate   time.Time      `json:"issue_date"`
	LastUpdated time.Time      `json:"last_updated"`
	Reports     []HourlyReport `json:"reports"`
}

type SummaryForecast struct {
	Reports []SummaryReport `json:"reports"`
}

// DailyForecast pairs the detailed and summary halves for one day offset.
// Either half may be absent.
type DailyForecast struct {
	Detailed *DetailedForecast `json:"detailed,omitempty"`
	Summary  *SummaryForecast  `json:"summary,omitempty"`
}

// ForecastData holds daily forecasts in source order, not sorted by date.
type ForecastData struct {
	Forecasts []DailyForecast `json:"forecasts"`
}

type WeatherOptions struct {
	LocationID string `json:"location_id"`
	Day        string `json:"day"`
	Locale     string `json:"locale"`
}

// Response is the typed tree decoded from a page's embedded payload. It is a
// transient intermediate: WeatherData is built from it and it is discarded.
type Response struct {
	Options WeatherOptions `json:"options"`
	Data    ForecastData   `json:"data"`
}

// WeatherData is the canonical scrape result for one location.
type WeatherData struct {
	LocationID        string          `json:"location_id"`
	LocationName      string          `json:"location_name"`
	LastUpdated       time.Time       `json:"last_updated"`
	CurrentConditions *HourlyReport   `json:"current_conditions"`
	HourlyForecast    []HourlyReport  `json:"hourly_forecast"`
	DailySummaries    []SummaryReport `json:"daily_summaries"`
}

// DisplayName returns the location name, or the id when no name is known.
func (w WeatherData) DisplayName() string {
	if w.LocationName != "" {
		return w.LocationName
	}
	return w.LocationID
}
