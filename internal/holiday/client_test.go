package holiday

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const octoberHolidays = `{
  "meta": {"code": 200},
  "response": {"holidays": [
    {"name": "國慶日", "description": "National Day", "country": {"id": "tw", "name": "Taiwan"},
     "date": {"iso": "2024-10-10"}, "type": ["National holiday"], "locations": "All"},
    {"name": "光復節", "description": "Retrocession Day", "country": {"id": "tw", "name": "Taiwan"},
     "date": {"iso": "2024-10-25T00:00:00+08:00"}, "type": "Observance", "locations": ["TW-TPE", "TW-KHH"]},
    {"name": "重陽節", "country": {"id": "tw", "name": "Taiwan"},
     "date": {"iso": "2024-10-11"}, "primary_type": "Observance"}
  ]}
}`

func newTestClient(url string) *Client {
	c := NewClient(Options{BaseURL: url, APIKey: "cal-key", Country: "TW", Language: "zh"}, zerolog.Nop())
	c.retryDelay = time.Millisecond
	return c
}

func TestListHolidays(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/holidays", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "cal-key", q.Get("api_key"))
		assert.Equal(t, "TW", q.Get("country"))
		assert.Equal(t, "2024", q.Get("year"))
		assert.Equal(t, "10", q.Get("month"))
		assert.Equal(t, "zh", q.Get("language"))
		assert.Empty(t, q.Get("day"))
		io.WriteString(w, octoberHolidays)
	}))
	defer srv.Close()

	holidays, err := newTestClient(srv.URL).ListHolidays(context.Background(), Query{Year: 2024, Month: 10})
	require.NoError(t, err)
	require.Len(t, holidays, 3)

	assert.Equal(t, "2024-10-10", holidays[0].Date)
	assert.Equal(t, "國慶日", holidays[0].Name)
	assert.Equal(t, "TW", holidays[0].Country)
	assert.Equal(t, []string{"National holiday"}, holidays[0].Types)

	assert.Equal(t, "2024-10-11", holidays[1].Date)
	assert.Equal(t, []string{"Observance"}, holidays[1].Types)

	assert.Equal(t, "2024-10-25", holidays[2].Date)
	assert.Equal(t, "TW-TPE, TW-KHH", holidays[2].Locations)

	day, err := holidays[2].Time()
	require.NoError(t, err)
	assert.Equal(t, time.October, day.Month())
}

func TestListHolidaysMetaError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"meta":{"code":401,"error_type":"auth failed","error_detail":"Missing or invalid api credentials."},"response":[]}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).ListHolidays(context.Background(), Query{Year: 2024})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 401, apiErr.StatusCode)
	assert.Equal(t, "auth failed", apiErr.Type)
}

func TestListHolidaysEmptyResponseArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"meta":{"code":200},"response":[]}`)
	}))
	defer srv.Close()

	holidays, err := newTestClient(srv.URL).ListHolidays(context.Background(), Query{Year: 2024, Month: 2})
	require.NoError(t, err)
	assert.Empty(t, holidays)
}

func TestListHolidaysRetriesServerError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			io.WriteString(w, "upstream down")
			return
		}
		io.WriteString(w, octoberHolidays)
	}))
	defer srv.Close()

	holidays, err := newTestClient(srv.URL).ListHolidays(context.Background(), Query{Year: 2024, Month: 10})
	require.NoError(t, err)
	assert.Len(t, holidays, 3)
	assert.Equal(t, 2, calls)
}

func TestListHolidaysValidation(t *testing.T) {
	c := NewClient(Options{APIKey: "k"}, zerolog.Nop())

	_, err := c.ListHolidays(context.Background(), Query{Year: 2024})
	assert.ErrorContains(t, err, "country is required")

	_, err = c.ListHolidays(context.Background(), Query{Country: "TW"})
	assert.ErrorContains(t, err, "year is required")

	_, err = c.ListHolidays(context.Background(), Query{Country: "TW", Year: 2024, Month: 13})
	assert.ErrorContains(t, err, "invalid month")
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "2024", q.Get("year"))
		assert.Empty(t, q.Get("month"))
		assert.Equal(t, "TW", q.Get("country"))
		io.WriteString(w, octoberHolidays)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	c.now = func() time.Time { return time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC) }

	count, err := c.Ping(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestPingBadKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"meta": {"code": 401, "error_type": "auth failed", "error_detail": "Missing or invalid api credentials."}, "response": []}`)
	}))
	defer srv.Close()

	count, err := newTestClient(srv.URL).Ping(context.Background())
	require.Error(t, err)
	assert.Zero(t, count)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 401, apiErr.StatusCode)
}
