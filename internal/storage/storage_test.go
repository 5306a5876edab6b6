package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjstillabower/bbc-weather-scraper/internal/models"
	"github.com/kjstillabower/bbc-weather-scraper/internal/scrapeerr"
)

func report(date models.Date, slot string, humidity int) models.HourlyReport {
	return models.HourlyReport{
		LocalDate:                       date,
		Timeslot:                        slot,
		TimeslotLength:                  1,
		TemperatureC:                    -2,
		TemperatureF:                    28,
		FeelsLikeTemperatureC:           -5,
		FeelsLikeTemperatureF:           23,
		EnhancedWeatherDescription:      `Light snow, "heavy" later, then clearing`,
		WeatherType:                     24,
		WeatherTypeText:                 "Light Snow",
		ExtendedWeatherType:             24,
		PrecipitationProbabilityPercent: 60,
		PrecipitationProbabilityText:    "Likely",
		WindSpeedKph:                    20,
		WindSpeedMph:                    12,
		GustSpeedKph:                    35,
		GustSpeedMph:                    22,
		WindDirection:                   "NE",
		WindDirectionAbbreviation:       "NNE",
		WindDirectionFull:               "North Easterly",
		WindDescription:                 "12mph from the north east",
		Humidity:                        humidity,
		Pressure:                        998,
		Visibility:                      "Poor",
	}
}

func sampleData() models.WeatherData {
	d1 := models.NewDate(2024, time.January, 15)
	d2 := models.NewDate(2024, time.January, 16)
	hourly := []models.HourlyReport{report(d1, "23:00", 0), report(d2, "00:00", 100)}
	current := hourly[0]
	temp, text := 3, "Sunny"
	return models.WeatherData{
		LocationID:        "2643743",
		LocationName:      "Newcastle upon Tyne",
		LastUpdated:       time.Date(2024, time.January, 15, 22, 45, 30, 0, time.UTC),
		CurrentConditions: &current,
		HourlyForecast:    hourly,
		DailySummaries: []models.SummaryReport{
			{LocalDate: d1, TemperatureC: &temp, WeatherTypeText: &text},
			{LocalDate: d2},
		},
	}
}

func TestNew(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")

	s, err := New(FormatCSV, dir, nil)
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, s.Format())
	assert.DirExists(t, dir)

	s, err = New(FormatJSON, dir, nil)
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, s.Format())

	_, err = New("xml", dir, nil)
	assert.True(t, errors.Is(err, scrapeerr.ErrStorage))
}

func TestJSONStore_RoundTrip(t *testing.T) {
	s, err := New(FormatJSON, t.TempDir(), nil)
	require.NoError(t, err)

	data := sampleData()
	path, err := s.Save(data, "london")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "london.json"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "\n  \"location_id\": \"2643743\"")
	assert.Contains(t, string(raw), `"local_date": "2024-01-15"`)

	loaded, err := s.Load(path)
	require.NoError(t, err)
	assert.Equal(t, data, loaded)
	assert.True(t, loaded.LastUpdated.Equal(data.LastUpdated))
}

func TestJSONStore_Load_Errors(t *testing.T) {
	dir := t.TempDir()
	s, err := New(FormatJSON, dir, nil)
	require.NoError(t, err)

	_, err = s.Load(filepath.Join(dir, "missing.json"))
	assert.True(t, errors.Is(err, scrapeerr.ErrStorage))

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o644))
	_, err = s.Load(bad)
	assert.True(t, errors.Is(err, scrapeerr.ErrStorage))
}

func TestCSVStore_RoundTripHourly(t *testing.T) {
	s, err := New(FormatCSV, t.TempDir(), nil)
	require.NoError(t, err)

	data := sampleData()
	path, err := s.Save(data, "london.csv")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "london.csv"))
	assert.False(t, strings.HasSuffix(path, ".csv.csv"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Join(csvHeader, ","), lines[0])

	loaded, err := s.Load(path)
	require.NoError(t, err)

	assert.Equal(t, data.LocationID, loaded.LocationID)
	assert.Equal(t, data.LocationName, loaded.LocationName)
	assert.True(t, loaded.LastUpdated.Equal(data.LastUpdated))
	assert.Nil(t, loaded.DailySummaries)

	require.Len(t, loaded.HourlyForecast, len(data.HourlyForecast))
	for i, want := range data.HourlyForecast {
		// Fields without a CSV column come back as documented defaults.
		want.WeatherType = 0
		want.ExtendedWeatherType = 0
		want.PrecipitationProbabilityText = ""
		want.WindDirectionAbbreviation = want.WindDirection
		want.WindDirectionFull = ""
		assert.Equal(t, want, loaded.HourlyForecast[i], "row %d", i)
	}
	require.NotNil(t, loaded.CurrentConditions)
	assert.Equal(t, loaded.HourlyForecast[0], *loaded.CurrentConditions)
}

func TestCSVStore_Save_EmptyHourly(t *testing.T) {
	s, err := New(FormatCSV, t.TempDir(), nil)
	require.NoError(t, err)

	data := sampleData()
	data.HourlyForecast = nil
	_, err = s.Save(data, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, scrapeerr.ErrStorage))
	assert.Contains(t, err.Error(), "no hourly forecast data")
}

func TestCSVStore_Load_Errors(t *testing.T) {
	dir := t.TempDir()
	s, err := New(FormatCSV, dir, nil)
	require.NoError(t, err)

	tests := map[string]string{
		"header only":    strings.Join(csvHeader, ",") + "\n",
		"missing column": "location_id,date\n2643743,2024-01-15\n",
		"bad number":     strings.Join(csvHeader, ",") + "\n2643743,London,2024-01-15T10:00:00Z,2024-01-15,10:00,x,1,1,1,d,t,1,1,1,1,1,N,w,1,1,v\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(name, " ", "_")+".csv")
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
			_, err := s.Load(path)
			assert.True(t, errors.Is(err, scrapeerr.ErrStorage), "err = %v", err)
		})
	}
}

func TestSave_DefaultFilename(t *testing.T) {
	dir := t.TempDir()
	s, err := New(FormatJSON, dir, nil)
	require.NoError(t, err)
	s.(*JSONStore).now = func() time.Time { return time.Date(2024, time.March, 5, 7, 8, 9, 0, time.UTC) }

	path, err := s.Save(sampleData(), "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "weather_newcastle_upon_tyne_20240305_070809.json"), path)
}

func TestDefaultFilename_FallsBackToID(t *testing.T) {
	data := models.WeatherData{LocationID: "2643743"}
	got := DefaultFilename(data, time.Date(2024, time.March, 5, 7, 8, 9, 0, time.UTC))
	assert.Equal(t, "weather_2643743_20240305_070809", got)
}

func TestDefaultFilename_ReplacesPathSeparators(t *testing.T) {
	at := time.Date(2024, time.March, 5, 7, 8, 9, 0, time.UTC)
	tests := map[string]string{
		"Stratford/Avon":  "weather_stratford_avon_20240305_070809",
		`Back\Slash Town`: "weather_back_slash_town_20240305_070809",
		"../etc":          "weather_.._etc_20240305_070809",
	}
	for name, want := range tests {
		got := DefaultFilename(models.WeatherData{LocationID: "1", LocationName: name}, at)
		assert.Equal(t, want, got, name)
		assert.NotContains(t, got, "/")
		assert.NotContains(t, got, `\`)
	}
}

func TestSave_DefaultFilenameWithSlashStaysInDir(t *testing.T) {
	dir := t.TempDir()
	s, err := New(FormatJSON, dir, nil)
	require.NoError(t, err)

	data := sampleData()
	data.LocationName = "Stratford/Avon"
	path, err := s.Save(data, "")
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))
	assert.FileExists(t, path)
}

func TestStores_RoundTripKeepsUTCOffset(t *testing.T) {
	bst := time.FixedZone("BST", 3600)
	for _, format := range []string{FormatJSON, FormatCSV} {
		t.Run(format, func(t *testing.T) {
			s, err := New(format, t.TempDir(), nil)
			require.NoError(t, err)

			data := sampleData()
			data.LastUpdated = time.Date(2024, time.June, 15, 10, 30, 0, 0, bst)
			path, err := s.Save(data, "bst")
			require.NoError(t, err)

			loaded, err := s.Load(path)
			require.NoError(t, err)
			assert.True(t, loaded.LastUpdated.Equal(data.LastUpdated),
				"LastUpdated = %v, want %v", loaded.LastUpdated, data.LastUpdated)
			_, offset := loaded.LastUpdated.Zone()
			assert.Equal(t, 3600, offset)
		})
	}
}
