package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/kjstillabower/bbc-weather-scraper/internal/models"
	"github.com/kjstillabower/bbc-weather-scraper/internal/scrapeerr"
)

var csvHeader = []string{
	"location_id", "location_name", "last_updated",
	"date", "time",
	"temp_c", "temp_f", "feels_like_c", "feels_like_f",
	"description", "weather_type",
	"precip_probability",
	"wind_speed_kph", "wind_speed_mph", "gust_speed_kph", "gust_speed_mph",
	"wind_direction", "wind_description",
	"humidity", "pressure", "visibility",
}

// CSVStore writes one row per hourly report. Daily summaries and the
// report fields without a column are not persisted.
type CSVStore struct {
	baseStore
}

func (s *CSVStore) Save(data models.WeatherData, filename string) (string, error) {
	path := s.path(data, filename)
	if len(data.HourlyForecast) == 0 {
		err := errors.New("no hourly forecast data to save")
		s.recordWrite(path, err)
		return "", scrapeerr.Storage("CSV save failed", err)
	}

	err := writeCSV(path, data)
	s.recordWrite(path, err)
	if err != nil {
		return "", scrapeerr.Storage("CSV save failed", err)
	}
	return path, nil
}

func writeCSV(path string, data models.WeatherData) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	lastUpdated := data.LastUpdated.Format(time.RFC3339Nano)
	for _, r := range data.HourlyForecast {
		row := []string{
			data.LocationID, data.LocationName, lastUpdated,
			r.LocalDate.String(), r.Timeslot,
			strconv.Itoa(r.TemperatureC), strconv.Itoa(r.TemperatureF),
			strconv.Itoa(r.FeelsLikeTemperatureC), strconv.Itoa(r.FeelsLikeTemperatureF),
			r.EnhancedWeatherDescription, r.WeatherTypeText,
			strconv.Itoa(r.PrecipitationProbabilityPercent),
			strconv.Itoa(r.WindSpeedKph), strconv.Itoa(r.WindSpeedMph),
			strconv.Itoa(r.GustSpeedKph), strconv.Itoa(r.GustSpeedMph),
			r.WindDirection, r.WindDescription,
			strconv.Itoa(r.Humidity), strconv.Itoa(r.Pressure), r.Visibility,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// Load rebuilds the hourly series. Fields without a column come back as
// zero values, except timeslot length (1) and the direction abbreviation,
// which repeats wind_direction.
func (s *CSVStore) Load(path string) (models.WeatherData, error) {
	data, err := readCSV(path)
	if err != nil {
		return models.WeatherData{}, scrapeerr.Storage("CSV load failed", err)
	}
	return data, nil
}

func readCSV(path string) (models.WeatherData, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.WeatherData{}, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return models.WeatherData{}, err
	}
	if len(records) < 2 {
		return models.WeatherData{}, errors.New("CSV file is empty")
	}

	col := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		col[name] = i
	}
	for _, name := range csvHeader {
		if _, ok := col[name]; !ok {
			return models.WeatherData{}, fmt.Errorf("missing column %q", name)
		}
	}

	first := records[1]
	lastUpdated, err := time.Parse(time.RFC3339Nano, first[col["last_updated"]])
	if err != nil {
		return models.WeatherData{}, fmt.Errorf("last_updated: %w", err)
	}
	data := models.WeatherData{
		LocationID:   first[col["location_id"]],
		LocationName: first[col["location_name"]],
		LastUpdated:  lastUpdated,
	}

	for i, rec := range records[1:] {
		report, err := rowToReport(rec, col)
		if err != nil {
			return models.WeatherData{}, fmt.Errorf("row %d: %w", i+1, err)
		}
		data.HourlyForecast = append(data.HourlyForecast, report)
	}
	current := data.HourlyForecast[0]
	data.CurrentConditions = &current
	return data, nil
}

func rowToReport(rec []string, col map[string]int) (models.HourlyReport, error) {
	date, err := models.ParseDate(rec[col["date"]])
	if err != nil {
		return models.HourlyReport{}, err
	}

	report := models.HourlyReport{
		LocalDate:                  date,
		Timeslot:                   rec[col["time"]],
		TimeslotLength:             1,
		EnhancedWeatherDescription: rec[col["description"]],
		WeatherTypeText:            rec[col["weather_type"]],
		WindDirection:              rec[col["wind_direction"]],
		WindDirectionAbbreviation:  rec[col["wind_direction"]],
		WindDescription:            rec[col["wind_description"]],
		Visibility:                 rec[col["visibility"]],
	}

	ints := []struct {
		column string
		dst    *int
	}{
		{"temp_c", &report.TemperatureC},
		{"temp_f", &report.TemperatureF},
		{"feels_like_c", &report.FeelsLikeTemperatureC},
		{"feels_like_f", &report.FeelsLikeTemperatureF},
		{"precip_probability", &report.PrecipitationProbabilityPercent},
		{"wind_speed_kph", &report.WindSpeedKph},
		{"wind_speed_mph", &report.WindSpeedMph},
		{"gust_speed_kph", &report.GustSpeedKph},
		{"gust_speed_mph", &report.GustSpeedMph},
		{"humidity", &report.Humidity},
		{"pressure", &report.Pressure},
	}
	for _, f := range ints {
		v, err := strconv.Atoi(rec[col[f.column]])
		if err != nil {
			return models.HourlyReport{}, fmt.Errorf("%s: %w", f.column, err)
		}
		*f.dst = v
	}
	return report, nil
}
