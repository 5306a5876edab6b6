package cache

import (
	"encoding/json"
	"fmt"

	"github.com/kjstillabower/bbc-weather-scraper/internal/models"
)

// keyPrefix namespaces forecast entries in shared memcached and redis servers.
const keyPrefix = "bbcweather:"

func cacheKey(locationID string) string {
	return keyPrefix + locationID
}

func encodeEntry(data models.WeatherData) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode cached forecast %s: %w", data.LocationID, err)
	}
	return raw, nil
}

func decodeEntry(key string, raw []byte) (models.WeatherData, error) {
	var data models.WeatherData
	if err := json.Unmarshal(raw, &data); err != nil {
		return models.WeatherData{}, fmt.Errorf("decode cached forecast %s: %w", key, err)
	}
	return data, nil
}
