package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/IcensRAGHomework/rag1-Kllin0219/internal/holiday"
	"github.com/IcensRAGHomework/rag1-Kllin0219/internal/jsonout"
	"github.com/IcensRAGHomework/rag1-Kllin0219/internal/llm"
	"github.com/IcensRAGHomework/rag1-Kllin0219/pkg/models"
)

const ToolGetHolidays = "get_holidays"

// HolidaySource is the holiday lookup the tools call into.
type HolidaySource interface {
	ListHolidays(ctx context.Context, q holiday.Query) ([]models.Holiday, error)
	DefaultCountry() string
}

type ToolHandler struct {
	holidays HolidaySource
}

func NewToolHandler(holidays HolidaySource) *ToolHandler {
	return &ToolHandler{holidays: holidays}
}

func (h *ToolHandler) Definitions() []llm.ToolDefinition {
	return []llm.ToolDefinition{
		{
			Name:        ToolGetHolidays,
			Description: "Look up the public holidays and memorial days of a country for a given year, optionally narrowed to one month or one day. Returns a JSON list of {date, name, weekday, description}.",
			Parameters: map[string]interface{}{
				"country": map[string]interface{}{
					"type":        "string",
					"description": "ISO 3166-1 alpha-2 country code, e.g. TW for Taiwan (default: " + h.defaultCountry() + ")",
				},
				"year": map[string]interface{}{
					"type":        "integer",
					"description": "Four digit year, e.g. 2024",
				},
				"month": map[string]interface{}{
					"type":        "integer",
					"description": "Month 1-12; omit for the whole year",
				},
				"day": map[string]interface{}{
					"type":        "integer",
					"description": "Day of month 1-31; requires month",
				},
			},
			Required: []string{"year"},
		},
	}
}

func (h *ToolHandler) ExecuteTool(ctx context.Context, name string, input json.RawMessage) (string, error) {
	switch name {
	case ToolGetHolidays:
		return h.getHolidays(ctx, input)
	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

type getHolidaysInput struct {
	Country string `json:"country"`
	Year    int    `json:"year"`
	Month   int    `json:"month"`
	Day     int    `json:"day"`
}

func (h *ToolHandler) getHolidays(ctx context.Context, input json.RawMessage) (string, error) {
	if h.holidays == nil {
		return "", fmt.Errorf("holiday lookup not configured. Set CALENDARIFIC_API_KEY")
	}

	var params getHolidaysInput
	if len(input) > 0 {
		if err := json.Unmarshal(input, &params); err != nil {
			return "", fmt.Errorf("invalid input: %w", err)
		}
	}
	if params.Day > 0 && params.Month == 0 {
		return "", fmt.Errorf("day requires month")
	}

	holidays, err := h.holidays.ListHolidays(ctx, holiday.Query{
		Country: strings.ToUpper(strings.TrimSpace(params.Country)),
		Year:    params.Year,
		Month:   params.Month,
		Day:     params.Day,
	})
	if err != nil {
		return "", err
	}

	entries := make([]holidayResult, 0, len(holidays))
	for _, hd := range holidays {
		entry := holidayResult{Date: hd.Date, Name: hd.Name, Description: hd.Description}
		if day, err := hd.Time(); err == nil {
			entry.Weekday = day.Weekday().String()
		}
		entries = append(entries, entry)
	}
	return jsonout.Marshal(entries)
}

type holidayResult struct {
	Date        string `json:"date"`
	Name        string `json:"name"`
	Weekday     string `json:"weekday,omitempty"`
	Description string `json:"description,omitempty"`
}

func (h *ToolHandler) defaultCountry() string {
	if h.holidays == nil || h.holidays.DefaultCountry() == "" {
		return "TW"
	}
	return h.holidays.DefaultCountry()
}
