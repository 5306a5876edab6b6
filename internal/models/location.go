package models

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Coordinates is a geographic point.
type Coordinates struct {
	Latitude  float64 `json:"latitude" validate:"min=-90,max=90"`
	Longitude float64 `json:"longitude" validate:"min=-180,max=180"`
}

// NewCoordinates returns coordinates after checking both bounds.
func NewCoordinates(latitude, longitude float64) (Coordinates, error) {
	c := Coordinates{Latitude: latitude, Longitude: longitude}
	if err := validate.Struct(c); err != nil {
		return Coordinates{}, fmt.Errorf("invalid coordinates (%g, %g): %w", latitude, longitude, err)
	}
	return c, nil
}

// Location identifies a BBC Weather forecast page. ID is the opaque
// identifier used to build the page URL.
type Location struct {
	ID          string       `json:"location_id"`
	Name        string       `json:"name"`
	Country     string       `json:"country,omitempty"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}
