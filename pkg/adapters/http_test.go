package adapters

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

var day = Window{
	Start: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2020, 1, 1, 23, 0, 0, 0, time.UTC),
}

func TestHTTPAdapter_BasicGET(t *testing.T) {
	// Fake weather API returning hourly arrays
	json := `{
        "hourly": {
            "time": ["2020-01-01T00:00", "2020-01-01T01:00", "2020-01-01T02:00"],
            "temperature_2m": [3.5, 3.1, null],
            "wind_speed_10m": [12, 14, 15]
        }
    }`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("expected Accept: application/json header")
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, json)
	}))
	defer server.Close()

	adapter := &HTTPAdapter{
		URL:             server.URL,
		Method:          "GET",
		Series:          "hamburg",
		TimestampPath:   "hourly.time",
		TimestampFormat: "iso_minute",
		ValuePaths: map[string]string{
			"temp": "hourly.temperature_2m",
			"wspd": "hourly.wind_speed_10m",
		},
	}

	df, err := adapter.Collect(context.Background(), day)
	if err != nil {
		t.Fatalf("Collect error: %v", err)
	}
	if len(df.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(df.Rows))
	}

	expectedTemps := []float64{3.5, 3.1}
	for i, want := range expectedTemps {
		if v := df.Rows[i].Values["temp"]; !v.Valid || v.Float != want {
			t.Errorf("row %d: expected temp %f, got %v", i, want, v)
		}
	}
	if df.Rows[2].Values["temp"].Valid {
		t.Errorf("row 2: null should be missing, got %v", df.Rows[2].Values["temp"])
	}
	if df.Rows[2].Values["wspd"].Float != 15 {
		t.Errorf("row 2: expected wspd 15, got %v", df.Rows[2].Values["wspd"])
	}
	for i, row := range df.Rows {
		if row.Series != "hamburg" {
			t.Errorf("row %d: series = %q, want hamburg", i, row.Series)
		}
		if want := day.Start.Add(time.Duration(i) * time.Hour); !row.Time.Equal(want) {
			t.Errorf("row %d: time = %v, want %v", i, row.Time, want)
		}
	}
}

func TestHTTPAdapter_POST_WithBody(t *testing.T) {
	receivedBody := ""
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}

		body, _ := io.ReadAll(r.Body)
		receivedBody = string(body)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"results": [{"ts": 1577836800, "val": 42.0}]}`)
	}))
	defer server.Close()

	adapter := &HTTPAdapter{
		URL:    server.URL,
		Method: "POST",
		Body:   `{"start": "{{.StartDate}}", "end": "{{.EndDate}}", "station": "{{.Station}}"}`,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
		TemplateVars:    map[string]string{"Station": "10147"},
		ValuePaths:      map[string]string{"temp": "results.#.val"},
		TimestampPath:   "results.#.ts",
		TimestampFormat: "unix",
	}

	df, err := adapter.Collect(context.Background(), day)
	if err != nil {
		t.Fatalf("Collect error: %v", err)
	}
	if len(df.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(df.Rows))
	}

	// Verify template was rendered
	if receivedBody != `{"start": "2020-01-01", "end": "2020-01-01", "station": "10147"}` {
		t.Errorf("unexpected body: %s", receivedBody)
	}

	if v := df.Rows[0].Values["temp"]; v.Float != 42.0 {
		t.Errorf("expected value 42.0, got %v", v)
	}
}

func TestHTTPAdapter_URLTemplate(t *testing.T) {
	receivedQuery := ""
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedQuery = r.URL.RawQuery
		fmt.Fprint(w, `{"t": [], "v": []}`)
	}))
	defer server.Close()

	adapter := &HTTPAdapter{
		URL:           server.URL + "/archive?latitude={{.Lat}}&start_date={{.StartDate}}",
		TemplateVars:  map[string]string{"Lat": "53.55"},
		ValuePaths:    map[string]string{"temp": "v"},
		TimestampPath: "t",
	}

	df, err := adapter.Collect(context.Background(), day)
	if err != nil {
		t.Fatalf("Collect error: %v", err)
	}
	if len(df.Rows) != 0 {
		t.Errorf("expected no rows, got %d", len(df.Rows))
	}
	if receivedQuery != "latitude=53.55&start_date=2020-01-01" {
		t.Errorf("unexpected query: %s", receivedQuery)
	}
}

func TestHTTPAdapter_CustomHeaders(t *testing.T) {
	receivedAuth := ""
	receivedCustom := ""

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedAuth = r.Header.Get("Authorization")
		receivedCustom = r.Header.Get("X-Custom-Header")

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data": [{"time": "2020-01-01T12:00:00Z", "temp": 9}]}`)
	}))
	defer server.Close()

	adapter := &HTTPAdapter{
		URL:    server.URL,
		Method: "GET",
		Headers: map[string]string{
			"Authorization":   "Bearer {{.Token}}",
			"X-Custom-Header": "static-value",
		},
		TemplateVars: map[string]string{
			"Token": "secret123",
		},
		ValuePaths:      map[string]string{"temp": "data.#.temp"},
		TimestampPath:   "data.#.time",
		TimestampFormat: "rfc3339",
	}

	_, err := adapter.Collect(context.Background(), day)
	if err != nil {
		t.Fatalf("Collect error: %v", err)
	}

	if receivedAuth != "Bearer secret123" {
		t.Errorf("expected 'Bearer secret123', got '%s'", receivedAuth)
	}
	if receivedCustom != "static-value" {
		t.Errorf("expected 'static-value', got '%s'", receivedCustom)
	}
}

func TestHTTPAdapter_UnixMilliTimestamps(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"series": [{"time": 1577836800000, "metric": 5.5}]}`)
	}))
	defer server.Close()

	adapter := &HTTPAdapter{
		URL:             server.URL,
		ValuePaths:      map[string]string{"temp": "series.#.metric"},
		TimestampPath:   "series.#.time",
		TimestampFormat: "unix_milli",
	}

	df, err := adapter.Collect(context.Background(), day)
	if err != nil {
		t.Fatalf("Collect error: %v", err)
	}
	if len(df.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(df.Rows))
	}
	if !df.Rows[0].Time.Equal(day.Start) {
		t.Errorf("expected %v, got %v", day.Start, df.Rows[0].Time)
	}
}

func TestHTTPAdapter_SortingAndWindow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		// Return data out of order, one point outside the window
		fmt.Fprint(w, `{"data": [
			{"ts": "2020-01-01T02:00:00Z", "val": 3},
			{"ts": "2020-01-01T00:00:00Z", "val": 1},
			{"ts": "2020-01-02T05:00:00Z", "val": 9},
			{"ts": "2020-01-01T01:00:00Z", "val": 2}
		]}`)
	}))
	defer server.Close()

	adapter := &HTTPAdapter{
		URL:             server.URL,
		ValuePaths:      map[string]string{"temp": "data.#.val"},
		TimestampPath:   "data.#.ts",
		TimestampFormat: "rfc3339",
	}

	df, err := adapter.Collect(context.Background(), day)
	if err != nil {
		t.Fatalf("Collect error: %v", err)
	}
	if len(df.Rows) != 3 {
		t.Fatalf("expected 3 rows inside the window, got %d", len(df.Rows))
	}

	// Values should be in time order: 1, 2, 3
	for i, want := range []float64{1, 2, 3} {
		if got := df.Rows[i].Values["temp"].Float; got != want {
			t.Errorf("row %d should have value %v, got %v", i, want, got)
		}
	}
}

func TestHTTPAdapter_MismatchedArrayLengths(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		// 3 values but only 2 timestamps
		fmt.Fprint(w, `{
			"values": [1, 2, 3],
			"times": ["2020-01-01T00:00:00Z", "2020-01-01T01:00:00Z"]
		}`)
	}))
	defer server.Close()

	adapter := &HTTPAdapter{
		URL:             server.URL,
		ValuePaths:      map[string]string{"temp": "values"},
		TimestampPath:   "times",
		TimestampFormat: "rfc3339",
	}

	_, err := adapter.Collect(context.Background(), day)
	if err == nil {
		t.Fatal("expected error for mismatched array lengths")
	}
	if !strings.Contains(err.Error(), "value count") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestHTTPAdapter_InvalidJSONPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data": [{"ts": "2020-01-01T00:00:00Z", "val": 1}]}`)
	}))
	defer server.Close()

	adapter := &HTTPAdapter{
		URL:             server.URL,
		ValuePaths:      map[string]string{"temp": "nonexistent.path"},
		TimestampPath:   "data.#.ts",
		TimestampFormat: "rfc3339",
	}

	_, err := adapter.Collect(context.Background(), day)
	if err == nil {
		t.Fatal("expected error for invalid JSON path")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestHTTPAdapter_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, "internal error")
	}))
	defer server.Close()

	adapter := &HTTPAdapter{
		URL:           server.URL,
		ValuePaths:    map[string]string{"temp": "data.#.val"},
		TimestampPath: "data.#.ts",
	}

	_, err := adapter.Collect(context.Background(), day)
	if err == nil {
		t.Fatal("expected error for HTTP 500")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestHTTPAdapter_InvalidWindow(t *testing.T) {
	adapter := &HTTPAdapter{
		URL:           "http://example.com",
		ValuePaths:    map[string]string{"temp": "v"},
		TimestampPath: "t",
	}
	_, err := adapter.Collect(context.Background(), Window{Start: day.End, End: day.Start})
	if err == nil {
		t.Fatal("expected error for inverted window")
	}
}

func TestHTTPAdapter_ValidateConfig(t *testing.T) {
	paths := map[string]string{"temp": "v"}
	tests := []struct {
		name    string
		adapter *HTTPAdapter
		wantErr bool
	}{
		{
			name:    "valid config",
			adapter: &HTTPAdapter{URL: "http://example.com", ValuePaths: paths, TimestampPath: "t"},
			wantErr: false,
		},
		{
			name:    "missing URL",
			adapter: &HTTPAdapter{ValuePaths: paths, TimestampPath: "t"},
			wantErr: true,
		},
		{
			name:    "missing ValuePaths",
			adapter: &HTTPAdapter{URL: "http://example.com", TimestampPath: "t"},
			wantErr: true,
		},
		{
			name:    "empty value path",
			adapter: &HTTPAdapter{URL: "http://example.com", ValuePaths: map[string]string{"temp": ""}, TimestampPath: "t"},
			wantErr: true,
		},
		{
			name:    "missing TimestampPath",
			adapter: &HTTPAdapter{URL: "http://example.com", ValuePaths: paths},
			wantErr: true,
		},
		{
			name:    "invalid timestamp format",
			adapter: &HTTPAdapter{URL: "http://example.com", ValuePaths: paths, TimestampPath: "t", TimestampFormat: "invalid"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.adapter.ValidateConfig()
			if (err != nil) != tt.wantErr {
				t.Errorf("wantErr=%v, got err=%v", tt.wantErr, err)
			}
			if !tt.wantErr {
				return
			}
			if _, err := tt.adapter.Collect(context.Background(), day); err == nil {
				t.Error("Collect should reject an invalid config")
			}
		})
	}
}

func TestHTTPAdapter_Name(t *testing.T) {
	adapter := &HTTPAdapter{}
	if adapter.Name() != "http" {
		t.Errorf("expected 'http', got '%s'", adapter.Name())
	}
}

func TestParseHTTPAdapterConfig(t *testing.T) {
	config := map[string]any{
		"url":             "https://api.example.com",
		"method":          "POST",
		"body":            `{"query": "test"}`,
		"series":          "hamburg",
		"timestampPath":   "data.#.ts",
		"timestampFormat": "unix",
		"valuePaths": map[string]any{
			"temp": "data.#.value",
		},
		"headers": map[string]any{
			"Authorization": "Bearer token",
		},
		"templateVars": map[string]any{
			"Lat": 53.55,
		},
	}

	adapter, err := ParseHTTPAdapterConfig(config)
	if err != nil {
		t.Fatalf("ParseHTTPAdapterConfig error: %v", err)
	}

	if adapter.URL != "https://api.example.com" {
		t.Errorf("URL: expected 'https://api.example.com', got '%s'", adapter.URL)
	}
	if adapter.Method != "POST" {
		t.Errorf("Method: expected 'POST', got '%s'", adapter.Method)
	}
	if adapter.Series != "hamburg" {
		t.Errorf("Series: expected 'hamburg', got '%s'", adapter.Series)
	}
	if adapter.ValuePaths["temp"] != "data.#.value" {
		t.Errorf("ValuePaths: expected 'data.#.value', got '%s'", adapter.ValuePaths["temp"])
	}
	if adapter.Headers["Authorization"] != "Bearer token" {
		t.Errorf("Headers: expected 'Bearer token', got '%s'", adapter.Headers["Authorization"])
	}
	if adapter.TemplateVars["Lat"] != "53.55" {
		t.Errorf("TemplateVars: expected '53.55', got '%s'", adapter.TemplateVars["Lat"])
	}
	if err := adapter.ValidateConfig(); err != nil {
		t.Errorf("ValidateConfig: %v", err)
	}
}

func TestParseHTTPAdapterConfig_InvalidMapping(t *testing.T) {
	config := map[string]any{
		"url":           "http://example.com",
		"timestampPath": "t",
		"valuePaths":    "temp=v",
	}

	_, err := ParseHTTPAdapterConfig(config)
	if err == nil {
		t.Fatal("expected error for non-mapping valuePaths")
	}
}

func TestHTTPAdapter_ContextCancellation(t *testing.T) {
	// Server that delays response
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		fmt.Fprint(w, `{"data": []}`)
	}))
	defer server.Close()

	adapter := &HTTPAdapter{
		URL:           server.URL,
		ValuePaths:    map[string]string{"temp": "data.#.val"},
		TimestampPath: "data.#.ts",
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := adapter.Collect(ctx, day)
	if err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestHTTPAdapter_MissingTemplateVariable(t *testing.T) {
	adapter := &HTTPAdapter{
		URL:           "http://example.com/?lat={{.Lat}}",
		ValuePaths:    map[string]string{"temp": "v"},
		TimestampPath: "t",
	}

	_, err := adapter.Collect(context.Background(), day)
	if err == nil || !strings.Contains(err.Error(), "render url") {
		t.Fatalf("expected url template error, got %v", err)
	}
}
