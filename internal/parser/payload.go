package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/kjstillabower/bbc-weather-scraper/internal/models"
)

// Wire types mirror the page payload. Pointer fields let the validator tell
// an absent or null value apart from a zero one.

type payload struct {
	Options *payloadOptions `json:"options" validate:"required"`
	Data    *payloadData    `json:"data" validate:"required"`
}

type payloadOptions struct {
	LocationID *string `json:"location_id" validate:"required"`
	Day        *string `json:"day"`
	Locale     *string `json:"locale"`
}

type payloadData struct {
	Forecasts jsonList[payloadDay] `json:"forecasts" validate:"dive"`
}

type payloadDay struct {
	Detailed *payloadDetailed `json:"detailed"`
	Summary  *payloadSummary  `json:"summary"`
}

type payloadDetailed struct {
	IssueDate   *string               `json:"issueDate" validate:"required"`
	LastUpdated *string               `json:"lastUpdated" validate:"required"`
	Reports     jsonList[payloadHour] `json:"reports" validate:"dive"`
}

type payloadHour struct {
	LocalDate      *string   `json:"localDate" validate:"required,datetime=2006-01-02"`
	Timeslot       *string   `json:"timeslot" validate:"required"`
	TimeslotLength *wholeInt `json:"timeslotLength" validate:"required"`

	TemperatureC          *wholeInt `json:"temperatureC" validate:"required"`
	TemperatureF          *wholeInt `json:"temperatureF" validate:"required"`
	FeelsLikeTemperatureC *wholeInt `json:"feelsLikeTemperatureC" validate:"required"`
	FeelsLikeTemperatureF *wholeInt `json:"feelsLikeTemperatureF" validate:"required"`

	EnhancedWeatherDescription *string   `json:"enhancedWeatherDescription" validate:"required"`
	WeatherType                *wholeInt `json:"weatherType" validate:"required"`
	WeatherTypeText            *string   `json:"weatherTypeText" validate:"required"`
	ExtendedWeatherType        *wholeInt `json:"extendedWeatherType" validate:"required"`

	PrecipitationProbabilityInPercent *wholeInt `json:"precipitationProbabilityInPercent" validate:"required"`
	PrecipitationProbabilityText      *string   `json:"precipitationProbabilityText" validate:"required"`

	WindSpeedKph              *wholeInt `json:"windSpeedKph" validate:"required"`
	WindSpeedMph              *wholeInt `json:"windSpeedMph" validate:"required"`
	GustSpeedKph              *wholeInt `json:"gustSpeedKph" validate:"required"`
	GustSpeedMph              *wholeInt `json:"gustSpeedMph" validate:"required"`
	WindDirection             *string   `json:"windDirection" validate:"required"`
	WindDirectionAbbreviation *string   `json:"windDirectionAbbreviation" validate:"required"`
	WindDirectionFull         *string   `json:"windDirectionFull" validate:"required"`
	WindDescription           *string   `json:"windDescription" validate:"required"`

	Humidity   *wholeInt `json:"humidity" validate:"required,min=0,max=100"`
	Pressure   *wholeInt `json:"pressure" validate:"required"`
	Visibility *string   `json:"visibility" validate:"required"`
}

type payloadSummary struct {
	Reports jsonList[payloadSummaryReport] `json:"reports" validate:"dive"`
}

type payloadSummaryReport struct {
	LocalDate                  *string   `json:"localDate" validate:"required,datetime=2006-01-02"`
	TemperatureC               *wholeInt `json:"temperatureC"`
	TemperatureF               *wholeInt `json:"temperatureF"`
	EnhancedWeatherDescription *string   `json:"enhancedWeatherDescription"`
	WeatherTypeText            *string   `json:"weatherTypeText"`
	WindSpeedKph               *wholeInt `json:"windSpeedKph"`
	WindSpeedMph               *wholeInt `json:"windSpeedMph"`
	Humidity                   *wholeInt `json:"humidity"`
	Pressure                   *wholeInt `json:"pressure"`
	Visibility                 *string   `json:"visibility"`
}

// jsonList is a list that may be absent but not null.
type jsonList[T any] []T

func (l *jsonList[T]) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		return errors.New("list is null")
	}
	var items []T
	if err := json.Unmarshal(b, &items); err != nil {
		return err
	}
	*l = items
	return nil
}

// wholeInt accepts JSON integers and floats with no fractional part (80.0).
type wholeInt int

func (n *wholeInt) UnmarshalJSON(b []byte) error {
	s := string(bytes.TrimSpace(b))
	if i, err := strconv.Atoi(s); err == nil {
		*n = wholeInt(i)
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return fmt.Errorf("%s is not a whole number", s)
	}
	*n = wholeInt(f)
	return nil
}

func (n *wholeInt) ptr() *int {
	if n == nil {
		return nil
	}
	v := int(*n)
	return &v
}

var payloadValidator = validator.New()

// decodePayload decodes a located candidate into the typed response tree.
func decodePayload(candidate string) (*models.Response, error) {
	var p payload
	if err := json.Unmarshal([]byte(candidate), &p); err != nil {
		return nil, fmt.Errorf("invalid JSON structure: %w", err)
	}
	if err := payloadValidator.Struct(p); err != nil {
		return nil, fmt.Errorf("payload schema: %w", err)
	}
	return p.toResponse()
}

func (p payload) toResponse() (*models.Response, error) {
	resp := &models.Response{
		Options: models.WeatherOptions{
			LocationID: *p.Options.LocationID,
			Day:        stringOr(p.Options.Day, "none"),
			Locale:     stringOr(p.Options.Locale, "en"),
		},
		Data: models.ForecastData{Forecasts: make([]models.DailyForecast, 0, len(p.Data.Forecasts))},
	}

	for i, day := range p.Data.Forecasts {
		var daily models.DailyForecast
		if day.Detailed != nil {
			detailed, err := day.Detailed.toDetailed()
			if err != nil {
				return nil, fmt.Errorf("forecasts[%d].detailed: %w", i, err)
			}
			daily.Detailed = detailed
		}
		if day.Summary != nil {
			summary, err := day.Summary.toSummary()
			if err != nil {
				return nil, fmt.Errorf("forecasts[%d].summary: %w", i, err)
			}
			daily.Summary = summary
		}
		resp.Data.Forecasts = append(resp.Data.Forecasts, daily)
	}
	return resp, nil
}

func (d payloadDetailed) toDetailed() (*models.DetailedForecast, error) {
	issued, err := parseTimestamp(*d.IssueDate)
	if err != nil {
		return nil, fmt.Errorf("issueDate: %w", err)
	}
	updated, err := parseTimestamp(*d.LastUpdated)
	if err != nil {
		return nil, fmt.Errorf("lastUpdated: %w", err)
	}

	reports := make([]models.HourlyReport, 0, len(d.Reports))
	for i, h := range d.Reports {
		report, err := h.toReport()
		if err != nil {
			return nil, fmt.Errorf("reports[%d]: %w", i, err)
		}
		reports = append(reports, report)
	}
	return &models.DetailedForecast{IssueDate: issued, LastUpdated: updated, Reports: reports}, nil
}

func (h payloadHour) toReport() (models.HourlyReport, error) {
	date, err := models.ParseDate(*h.LocalDate)
	if err != nil {
		return models.HourlyReport{}, err
	}
	return models.HourlyReport{
		LocalDate:                       date,
		Timeslot:                        *h.Timeslot,
		TimeslotLength:                  int(*h.TimeslotLength),
		TemperatureC:                    int(*h.TemperatureC),
		TemperatureF:                    int(*h.TemperatureF),
		FeelsLikeTemperatureC:           int(*h.FeelsLikeTemperatureC),
		FeelsLikeTemperatureF:           int(*h.FeelsLikeTemperatureF),
		EnhancedWeatherDescription:      *h.EnhancedWeatherDescription,
		WeatherType:                     int(*h.WeatherType),
		WeatherTypeText:                 *h.WeatherTypeText,
		ExtendedWeatherType:             int(*h.ExtendedWeatherType),
		PrecipitationProbabilityPercent: int(*h.PrecipitationProbabilityInPercent),
		PrecipitationProbabilityText:    *h.PrecipitationProbabilityText,
		WindSpeedKph:                    int(*h.WindSpeedKph),
		WindSpeedMph:                    int(*h.WindSpeedMph),
		GustSpeedKph:                    int(*h.GustSpeedKph),
		GustSpeedMph:                    int(*h.GustSpeedMph),
		WindDirection:                   *h.WindDirection,
		WindDirectionAbbreviation:       *h.WindDirectionAbbreviation,
		WindDirectionFull:               *h.WindDirectionFull,
		WindDescription:                 *h.WindDescription,
		Humidity:                        int(*h.Humidity),
		Pressure:                        int(*h.Pressure),
		Visibility:                      *h.Visibility,
	}, nil
}

func (s payloadSummary) toSummary() (*models.SummaryForecast, error) {
	reports := make([]models.SummaryReport, 0, len(s.Reports))
	for i, r := range s.Reports {
		date, err := models.ParseDate(*r.LocalDate)
		if err != nil {
			return nil, fmt.Errorf("reports[%d]: %w", i, err)
		}
		reports = append(reports, models.SummaryReport{
			LocalDate:                  date,
			TemperatureC:               r.TemperatureC.ptr(),
			TemperatureF:               r.TemperatureF.ptr(),
			EnhancedWeatherDescription: r.EnhancedWeatherDescription,
			WeatherTypeText:            r.WeatherTypeText,
			WindSpeedKph:               r.WindSpeedKph.ptr(),
			WindSpeedMph:               r.WindSpeedMph.ptr(),
			Humidity:                   r.Humidity.ptr(),
			Pressure:                   r.Pressure.ptr(),
			Visibility:                 r.Visibility,
		})
	}
	return &models.SummaryForecast{Reports: reports}, nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05.999999999Z07",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04Z0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02T15",
	"2006-01-02",
}

// parseTimestamp accepts ISO 8601 date-times with or without seconds,
// fractions and a zone (Z, +hh:mm, +hhmm or +hh), plus bare dates. A space
// may stand in for the T. Values without a zone are read as UTC, and zero
// offsets are returned in UTC.
func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) > 10 && s[10] == ' ' {
		s = s[:10] + "T" + s[11:]
	}
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if _, offset := t.Zone(); offset == 0 {
			t = t.UTC()
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

func stringOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
