package adapters

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"slices"
	"strings"
	"text/template"
	"time"

	"github.com/tidwall/gjson"

	"github.com/HatiCode/loadcast/pkg/models"
)

// HTTPAdapter is a generic HTTP adapter that can call any REST API endpoint
// and extract hourly observations using JSON path expressions.
//
// It supports:
//   - Configurable HTTP method (GET, POST, etc.)
//   - Templated URL, body and headers with variables: {{.Start}}, {{.End}},
//     {{.StartRFC3339}}, {{.EndRFC3339}}, {{.StartDate}}, {{.EndDate}}
//     and any TemplateVars (station coordinates, API keys, ...)
//   - One gjson path for timestamps and one per value column
//   - Timestamp parsing as RFC3339, ISO minutes, Unix seconds or milliseconds
//
// Example configuration for the Open-Meteo archive API:
//
//	adapter := &HTTPAdapter{
//	    URL: "https://archive-api.open-meteo.com/v1/archive?latitude={{.Lat}}&longitude={{.Lon}}" +
//	        "&start_date={{.StartDate}}&end_date={{.EndDate}}&hourly=temperature_2m&timezone=GMT",
//	    TimestampPath:   "hourly.time",
//	    TimestampFormat: "iso_minute",
//	    ValuePaths:      map[string]string{"temp": "hourly.temperature_2m"},
//	    TemplateVars:    map[string]string{"Lat": "53.55", "Lon": "9.99"},
//	}
type HTTPAdapter struct {
	// URL is the endpoint to call (required). It may use template variables.
	URL string

	// Method is the HTTP method (GET, POST, etc.). Defaults to GET if empty.
	Method string

	// Headers are custom HTTP headers to include in the request.
	// Values can use template variables like {{.Token}}.
	Headers map[string]string

	// Body is the request body template (for POST/PUT).
	Body string

	// Series is written to every collected row.
	Series string

	// TimestampPath is the gjson path to extract timestamps from the response.
	TimestampPath string

	// ValuePaths maps an output column to the gjson path of its values.
	// Every path must return as many elements as TimestampPath. JSON nulls
	// become missing values.
	ValuePaths map[string]string

	// TimestampFormat specifies how to parse timestamps:
	//   "rfc3339"    - RFC3339 strings (default)
	//   "iso_minute" - "2006-01-02T15:04" strings in UTC
	//   "unix"       - Unix seconds (float or int)
	//   "unix_milli" - Unix milliseconds (float or int)
	TimestampFormat string

	// HTTPClient is optional; if nil a default client with timeout is used.
	HTTPClient *http.Client

	// TemplateVars are custom variables available in URL, Body and Headers
	// templates.
	TemplateVars map[string]string
}

func (h *HTTPAdapter) Name() string { return "http" }

// Collect implements Adapter. It calls the configured HTTP endpoint, extracts
// the configured columns and keeps the rows inside w.
func (h *HTTPAdapter) Collect(ctx context.Context, w Window) (models.Frame, error) {
	if err := h.ValidateConfig(); err != nil {
		return models.Frame{}, fmt.Errorf("http adapter: %w", err)
	}
	if err := w.Validate(); err != nil {
		return models.Frame{}, fmt.Errorf("http adapter: %w", err)
	}

	templateData := map[string]any{
		"Start":        w.Start.Unix(),
		"End":          w.End.Unix(),
		"StartRFC3339": w.Start.UTC().Format(time.RFC3339),
		"EndRFC3339":   w.End.UTC().Format(time.RFC3339),
		"StartDate":    w.Start.UTC().Format(time.DateOnly),
		"EndDate":      w.End.UTC().Format(time.DateOnly),
		"Series":       h.Series,
	}
	for k, v := range h.TemplateVars {
		templateData[k] = v
	}

	method := h.Method
	if method == "" {
		method = http.MethodGet
	}

	url, err := renderTemplate(h.URL, templateData)
	if err != nil {
		return models.Frame{}, fmt.Errorf("render url template: %w", err)
	}

	var bodyReader io.Reader
	if h.Body != "" {
		renderedBody, err := renderTemplate(h.Body, templateData)
		if err != nil {
			return models.Frame{}, fmt.Errorf("render body template: %w", err)
		}
		bodyReader = bytes.NewBufferString(renderedBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return models.Frame{}, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	for key, value := range h.Headers {
		rendered, err := renderTemplate(value, templateData)
		if err != nil {
			return models.Frame{}, fmt.Errorf("render header %s: %w", key, err)
		}
		req.Header.Set(key, rendered)
	}

	resp, err := httpClient(h.HTTPClient).Do(req)
	if err != nil {
		return models.Frame{}, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return models.Frame{}, fmt.Errorf("http status %d: %s", resp.StatusCode, string(body))
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Frame{}, fmt.Errorf("read response: %w", err)
	}

	frame, err := h.decode(respBody)
	if err != nil {
		return models.Frame{}, err
	}
	return w.Clip(frame), nil
}

func (h *HTTPAdapter) decode(body []byte) (models.Frame, error) {
	timestamps := gjson.GetBytes(body, h.TimestampPath)
	if !timestamps.Exists() {
		return models.Frame{}, fmt.Errorf("timestamp path %q not found in response", h.TimestampPath)
	}
	tsArray := timestamps.Array()

	rows := make([]models.Row, len(tsArray))
	for i, raw := range tsArray {
		ts, err := h.parseTimestamp(raw)
		if err != nil {
			return models.Frame{}, fmt.Errorf("parse timestamp[%d]: %w", i, err)
		}
		rows[i] = models.Row{Series: h.Series, Time: ts, Values: make(map[string]models.Value, len(h.ValuePaths))}
	}

	for _, col := range slices.Sorted(maps.Keys(h.ValuePaths)) {
		path := h.ValuePaths[col]
		values := gjson.GetBytes(body, path)
		if !values.Exists() {
			return models.Frame{}, fmt.Errorf("value path %q not found in response", path)
		}
		valArray := values.Array()
		if len(valArray) != len(tsArray) {
			return models.Frame{}, fmt.Errorf("%s: value count (%d) != timestamp count (%d)", col, len(valArray), len(tsArray))
		}
		for i, v := range valArray {
			if v.Type == gjson.Null {
				rows[i].Values[col] = models.Missing()
				continue
			}
			rows[i].Values[col] = models.Float(v.Float())
		}
	}

	slices.SortStableFunc(rows, func(a, b models.Row) int {
		return a.Time.Compare(b.Time)
	})
	return models.Frame{Rows: rows}, nil
}

// parseTimestamp parses a timestamp according to the configured format
func (h *HTTPAdapter) parseTimestamp(value gjson.Result) (time.Time, error) {
	format := h.TimestampFormat
	if format == "" {
		format = "rfc3339"
	}

	switch format {
	case "rfc3339":
		t, err := time.Parse(time.RFC3339, value.String())
		return t.UTC(), err

	case "iso_minute":
		return time.ParseInLocation("2006-01-02T15:04", value.String(), time.UTC)

	case "unix":
		// Unix seconds (supports both int and float)
		sec := value.Float()
		return time.Unix(int64(sec), 0).UTC(), nil

	case "unix_milli":
		ms := value.Float()
		return time.UnixMilli(int64(ms)).UTC(), nil

	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp format: %s", format)
	}
}

func httpClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: 30 * time.Second}
}

// renderTemplate renders a text template with the given data
func renderTemplate(tmplStr string, data map[string]any) (string, error) {
	if !strings.Contains(tmplStr, "{{") {
		return tmplStr, nil
	}

	tmpl, err := template.New("").Option("missingkey=error").Parse(tmplStr)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

// ParseHTTPAdapterConfig creates an HTTPAdapter from a generic config map.
// This is useful for dynamic configuration from YAML/JSON.
//
// Example config:
//
//	{
//	  "url": "https://api.example.com/weather?lat={{.Lat}}",
//	  "method": "GET",
//	  "headers": {"Authorization": "Bearer token123"},
//	  "timestampPath": "hourly.time",
//	  "timestampFormat": "iso_minute",
//	  "valuePaths": {"temp": "hourly.temperature_2m"},
//	  "templateVars": {"Lat": "53.55"}
//	}
func ParseHTTPAdapterConfig(config map[string]any) (*HTTPAdapter, error) {
	adapter := &HTTPAdapter{
		TemplateVars: make(map[string]string),
		ValuePaths:   make(map[string]string),
	}

	if v, ok := config["url"].(string); ok {
		adapter.URL = v
	}
	if v, ok := config["method"].(string); ok {
		adapter.Method = v
	}
	if v, ok := config["body"].(string); ok {
		adapter.Body = v
	}
	if v, ok := config["series"].(string); ok {
		adapter.Series = v
	}
	if v, ok := config["timestampPath"].(string); ok {
		adapter.TimestampPath = v
	}
	if v, ok := config["timestampFormat"].(string); ok {
		adapter.TimestampFormat = v
	}

	var err error
	if adapter.Headers, err = stringMap(config, "headers"); err != nil {
		return nil, err
	}
	if vars, err := stringMap(config, "templateVars"); err != nil {
		return nil, err
	} else if vars != nil {
		adapter.TemplateVars = vars
	}
	if paths, err := stringMap(config, "valuePaths"); err != nil {
		return nil, err
	} else if paths != nil {
		adapter.ValuePaths = paths
	}

	return adapter, nil
}

func stringMap(config map[string]any, key string) (map[string]string, error) {
	raw, ok := config[key]
	if !ok || raw == nil {
		return nil, nil
	}

	out := make(map[string]string)
	switch m := raw.(type) {
	case map[string]string:
		maps.Copy(out, m)
	case map[string]any:
		for k, v := range m {
			switch val := v.(type) {
			case string:
				out[k] = val
			case fmt.Stringer:
				out[k] = val.String()
			case int, int64, float64, bool:
				out[k] = fmt.Sprint(val)
			default:
				return nil, fmt.Errorf("invalid %s.%s: %T is not a scalar", key, k, v)
			}
		}
	default:
		return nil, fmt.Errorf("invalid %s: expected a mapping, got %T", key, raw)
	}
	return out, nil
}

// ValidateConfig checks if the adapter configuration is valid
func (h *HTTPAdapter) ValidateConfig() error {
	if h.URL == "" {
		return errors.New("url is required")
	}
	if h.TimestampPath == "" {
		return errors.New("timestampPath is required")
	}
	if len(h.ValuePaths) == 0 {
		return errors.New("at least one valuePaths entry is required")
	}
	for col, path := range h.ValuePaths {
		if col == "" || path == "" {
			return fmt.Errorf("invalid valuePaths entry %q: %q", col, path)
		}
	}

	validFormats := map[string]bool{
		"":           true,
		"rfc3339":    true,
		"iso_minute": true,
		"unix":       true,
		"unix_milli": true,
	}
	if !validFormats[h.TimestampFormat] {
		return fmt.Errorf("invalid timestampFormat: %s (must be rfc3339, iso_minute, unix, or unix_milli)", h.TimestampFormat)
	}

	return nil
}
