package holiday

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/IcensRAGHomework/rag1-Kllin0219/pkg/models"
)

type Meta struct {
	Code        int    `json:"code"`
	ErrorType   string `json:"error_type,omitempty"`
	ErrorDetail string `json:"error_detail,omitempty"`
}

// listResponse.Response is an object on success and an empty array on error.
type listResponse struct {
	Meta     Meta            `json:"meta"`
	Response json.RawMessage `json:"response"`
}

type holidaysBody struct {
	Holidays []HolidayData `json:"holidays"`
}

type HolidayData struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Country     Country    `json:"country"`
	Date        Date       `json:"date"`
	Type        FlexList   `json:"type"`
	PrimaryType string     `json:"primary_type"`
	Locations   FlexString `json:"locations"`
}

type Country struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Date struct {
	ISO string `json:"iso"`
}

// Day returns the YYYY-MM-DD part of an ISO date or date-time.
func (d Date) Day() string {
	if len(d.ISO) >= 10 {
		return d.ISO[:10]
	}
	return d.ISO
}

// FlexList accepts either a JSON array of strings or a single string.
type FlexList []string

func (f *FlexList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*f = list
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		if str != "" {
			*f = FlexList{str}
		}
		return nil
	}

	return nil
}

type FlexString struct {
	Value string
}

func (f *FlexString) UnmarshalJSON(data []byte) error {
	var strVal string
	if err := json.Unmarshal(data, &strVal); err == nil {
		f.Value = strVal
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		f.Value = strings.Join(list, ", ")
		return nil
	}

	var number json.Number
	if err := json.Unmarshal(data, &number); err == nil {
		f.Value = number.String()
	}
	return nil
}

// APIError is a non-200 meta code or HTTP status from the holiday API.
type APIError struct {
	StatusCode int
	Type       string
	Detail     string
}

func (e *APIError) Error() string {
	if e.Type == "" && e.Detail == "" {
		return fmt.Sprintf("holiday API error (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("holiday API error (status %d): %s: %s", e.StatusCode, e.Type, e.Detail)
}

func convertHoliday(h HolidayData) models.Holiday {
	types := []string(h.Type)
	if len(types) == 0 && h.PrimaryType != "" {
		types = []string{h.PrimaryType}
	}
	return models.Holiday{
		Date:        h.Date.Day(),
		Name:        h.Name,
		Description: h.Description,
		Types:       types,
		Country:     strings.ToUpper(h.Country.ID),
		Locations:   h.Locations.Value,
	}
}
