package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// carQuery fakes the CarQuery API, answering per cmd.
func carQuery(t *testing.T, responses map[string]string) (*Client, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		body, ok := responses[r.URL.Query().Get("cmd")]
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)

	c, err := NewClient(16, WithBaseURL(ts.URL+"/"))
	require.NoError(t, err)
	return c, &hits
}

func TestMakes_SortedAndCached(t *testing.T) {
	c, hits := carQuery(t, map[string]string{
		"getMakes": `{"Makes":[{"make_display":"Toyota"},{"make_display":"Ford"},{"make_display":"Honda"}]}`,
	})

	got, err := c.Makes(context.Background(), "2020")
	require.NoError(t, err)
	assert.Equal(t, []string{"Ford", "Honda", "Toyota"}, got)

	got[0] = "mutated"
	again, err := c.Makes(context.Background(), "2020")
	require.NoError(t, err)
	assert.Equal(t, []string{"Ford", "Honda", "Toyota"}, again)
	assert.Equal(t, int32(1), hits.Load())
}

func TestModels_LowercasesMake(t *testing.T) {
	var gotQuery string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"Models":[{"model_name":"Mustang"},{"model_name":"F-150"}]}`))
	}))
	defer ts.Close()

	c, err := NewClient(0, WithBaseURL(ts.URL+"/"))
	require.NoError(t, err)

	got, err := c.Models(context.Background(), "2024", "Ford")
	require.NoError(t, err)
	assert.Equal(t, []string{"F-150", "Mustang"}, got)
	assert.Contains(t, gotQuery, "make=ford")
	assert.Contains(t, gotQuery, "cmd=getModels")
	assert.Contains(t, gotQuery, "year=2024")
}

func TestMakes_Errors(t *testing.T) {
	c, _ := carQuery(t, map[string]string{"getMakes": `not json`})

	_, err := c.Makes(context.Background(), "2020")
	assert.Error(t, err)

	_, err = c.Makes(context.Background(), "")
	assert.Error(t, err)

	_, err = c.Models(context.Background(), "2020", "")
	assert.Error(t, err)
}

func TestTrims_Formatting(t *testing.T) {
	c, _ := carQuery(t, map[string]string{
		"getTrims": `{"Trims":[
			{"model_trim":"XLT","model_engine_cc":"3500","model_transmission_type":"Automatic"},
			{"model_trim":"","model_engine_cc":"2700","model_transmission_type":"Automatic"},
			{"model_trim":"Raptor","model_engine_cc":null,"model_transmission_type":null},
			{"model_trim":"Lightning","model_engine_cc":1498,"model_transmission_type":"Single Speed"}
		]}`,
	})

	got, err := c.Trims(context.Background(), "2024", "Ford", "F-150")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Base - 2.7L - Automatic",
		"Lightning - 1.498L - Single Speed",
		"Raptor -  - ",
		"XLT - 3.5L - Automatic",
	}, got)
}

func TestTrims_Fallback(t *testing.T) {
	tests := []struct {
		name      string
		responses map[string]string
	}{
		{name: "server error", responses: map[string]string{}},
		{name: "not json", responses: map[string]string{"getTrims": `<html>rate limited</html>`}},
		{name: "empty list", responses: map[string]string{"getTrims": `{"Trims":[]}`}},
		{name: "missing key", responses: map[string]string{"getTrims": `{}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := carQuery(t, tt.responses)

			got, err := c.Trims(context.Background(), "2024", "Ford", "F-150")
			require.NoError(t, err)
			assert.Equal(t, []string{FallbackTrim}, got)
		})
	}
}

func TestTrims_FallbackIsNotCached(t *testing.T) {
	c, hits := carQuery(t, map[string]string{"getTrims": `{"Trims":[]}`})

	_, _ = c.Trims(context.Background(), "2024", "Ford", "F-150")
	_, _ = c.Trims(context.Background(), "2024", "Ford", "F-150")
	assert.Equal(t, int32(2), hits.Load())
}

func TestTrims_CancelledContext(t *testing.T) {
	c, _ := carQuery(t, map[string]string{"getTrims": `{"Trims":[]}`})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Trims(ctx, "2024", "Ford", "F-150")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFormatTrim(t *testing.T) {
	assert.Equal(t, "EX - 1.5L - CVT", FormatTrim("EX", 1500, "CVT"))
	assert.Equal(t, "Base - 2L - Manual", FormatTrim("", 2000, "Manual"))
	assert.Equal(t, "Base -  - ", FormatTrim("", 0, ""))
}

func TestYears(t *testing.T) {
	years := Years(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.Len(t, years, YearSpan)
	assert.Equal(t, "2026", years[0])
	assert.Equal(t, "1992", years[len(years)-1])
}
