package holiday

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/IcensRAGHomework/rag1-Kllin0219/internal/webclient"
	"github.com/IcensRAGHomework/rag1-Kllin0219/pkg/models"
	"github.com/rs/zerolog"
)

const DefaultBaseURL = "https://calendarific.com/api/v2"

type Query struct {
	Country  string
	Year     int
	Month    int
	Day      int
	Type     string
	Language string
}

// Client talks to the Calendarific holidays API.
type Client struct {
	baseURL    string
	apiKey     string
	country    string
	language   string
	httpClient *http.Client
	retryDelay time.Duration
	logger     zerolog.Logger
	now        func() time.Time
}

type Options struct {
	BaseURL  string
	APIKey   string
	Country  string
	Language string
}

func NewClient(opts Options, logger zerolog.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		country:    opts.Country,
		language:   opts.Language,
		httpClient: webclient.NewDefault(30 * time.Second),
		retryDelay: time.Second,
		logger:     logger,
		now:        time.Now,
	}
}

func (c *Client) DefaultCountry() string {
	return c.country
}

// ListHolidays returns the holidays matching q ordered by date.
func (c *Client) ListHolidays(ctx context.Context, q Query) ([]models.Holiday, error) {
	if q.Country == "" {
		q.Country = c.country
	}
	if q.Language == "" {
		q.Language = c.language
	}
	if q.Country == "" {
		return nil, fmt.Errorf("country is required")
	}
	if q.Year <= 0 {
		return nil, fmt.Errorf("year is required")
	}
	if q.Month < 0 || q.Month > 12 {
		return nil, fmt.Errorf("invalid month: %d", q.Month)
	}
	if q.Day < 0 || q.Day > 31 {
		return nil, fmt.Errorf("invalid day: %d", q.Day)
	}

	path := c.buildPath("/holidays", q)

	c.logger.Debug().
		Str("country", q.Country).
		Int("year", q.Year).
		Int("month", q.Month).
		Msg("listing holidays")

	var body holidaysBody
	if err := c.GetJSON(ctx, path, &body); err != nil {
		return nil, fmt.Errorf("failed to list holidays: %w", err)
	}

	holidays := make([]models.Holiday, 0, len(body.Holidays))
	for _, h := range body.Holidays {
		holidays = append(holidays, convertHoliday(h))
	}
	sort.SliceStable(holidays, func(i, j int) bool {
		return holidays[i].Date < holidays[j].Date
	})

	return holidays, nil
}

// Ping checks credentials and connectivity by listing the current year.
func (c *Client) Ping(ctx context.Context) (int, error) {
	holidays, err := c.ListHolidays(ctx, Query{Year: c.now().Year()})
	if err != nil {
		return 0, err
	}
	return len(holidays), nil
}

// GetJSON fetches path and decodes the "response" member into result.
func (c *Client) GetJSON(ctx context.Context, path string, result any) error {
	status, body, err := webclient.DoWithRetry(ctx, 3, c.retryDelay, func() (int, []byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return 0, nil, fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
		}
		return resp.StatusCode, b, nil
	})
	if err != nil {
		return err
	}

	var envelope listResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		if status != http.StatusOK {
			return &APIError{StatusCode: status, Detail: strings.TrimSpace(string(body))}
		}
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if envelope.Meta.Code != http.StatusOK || status != http.StatusOK {
		code := envelope.Meta.Code
		if code == 0 {
			code = status
		}
		return &APIError{StatusCode: code, Type: envelope.Meta.ErrorType, Detail: envelope.Meta.ErrorDetail}
	}

	if len(envelope.Response) == 0 || envelope.Response[0] == '[' {
		return nil
	}
	return json.Unmarshal(envelope.Response, result)
}

func (c *Client) buildPath(base string, q Query) string {
	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("country", q.Country)
	params.Set("year", strconv.Itoa(q.Year))

	if q.Month > 0 {
		params.Set("month", strconv.Itoa(q.Month))
	}
	if q.Day > 0 {
		params.Set("day", strconv.Itoa(q.Day))
	}
	if q.Type != "" {
		params.Set("type", q.Type)
	}
	if q.Language != "" {
		params.Set("language", q.Language)
	}

	return fmt.Sprintf("%s?%s", base, params.Encode())
}
