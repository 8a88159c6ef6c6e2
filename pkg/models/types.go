package models

import "time"

// Holiday is one entry returned by the holiday web API.
type Holiday struct {
	Date        string   `json:"date"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Types       []string `json:"types,omitempty"`
	Country     string   `json:"country,omitempty"`
	Locations   string   `json:"locations,omitempty"`
}

// Time parses Date as YYYY-MM-DD.
func (h Holiday) Time() (time.Time, error) {
	return time.Parse(DateLayout, h.Date)
}

const DateLayout = "2006-01-02"
