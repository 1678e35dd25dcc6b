package domain

import "errors"

var (
	// ErrSensorNotFound is returned when a reading names an unregistered sensor.
	ErrSensorNotFound = errors.New("sensor not found")
	// ErrSensorInactive is returned for readings from a decommissioned sensor.
	ErrSensorInactive = errors.New("sensor inactive")
)

// Sensor is the registered metadata of a field device.
type Sensor struct {
	ID         string               `json:"id"`
	Identifier string               `json:"identifier,omitempty"`
	Region     string               `json:"region,omitempty"`
	SoilType   SoilType             `json:"soil_type,omitempty"`
	Overrides  CalibrationOverrides `json:"overrides,omitzero"`
	Latitude   *float64             `json:"latitude,omitempty"`
	Longitude  *float64             `json:"longitude,omitempty"`
	Active     bool                 `json:"active"`
}

// Coordinates returns the sensor position when both axes are known.
func (s Sensor) Coordinates() (lat, lon float64, ok bool) {
	if s.Latitude == nil || s.Longitude == nil {
		return 0, 0, false
	}
	return *s.Latitude, *s.Longitude, true
}

// Label is the human-facing name used in alert messages.
func (s Sensor) Label() string {
	name := s.Identifier
	if name == "" {
		name = s.ID
	}
	if s.Region != "" {
		return name + " (" + s.Region + ")"
	}
	return name
}
