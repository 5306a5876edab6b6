package storage

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/kjstillabower/bbc-weather-scraper/internal/models"
	"github.com/kjstillabower/bbc-weather-scraper/internal/scrapeerr"
)

// JSONStore writes the full WeatherData record as indented JSON.
type JSONStore struct {
	baseStore
}

func (s *JSONStore) Save(data models.WeatherData, filename string) (string, error) {
	path := s.path(data, filename)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	err := enc.Encode(data)
	if err == nil {
		err = os.WriteFile(path, buf.Bytes(), 0o644)
	}
	s.recordWrite(path, err)
	if err != nil {
		return "", scrapeerr.Storage("JSON save failed", err)
	}
	return path, nil
}

func (s *JSONStore) Load(path string) (models.WeatherData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return models.WeatherData{}, scrapeerr.Storage("JSON load failed", err)
	}
	var data models.WeatherData
	if err := json.Unmarshal(raw, &data); err != nil {
		return models.WeatherData{}, scrapeerr.Storage("JSON load failed", err)
	}
	return data, nil
}
