package adapters

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/HatiCode/loadcast/pkg/dataio"
)

// New creates an adapter based on kind and generic configuration map.
// This is the central extension point for adding new adapter types.
//
// Supported kinds:
//   - "opsd": Open Power System Data load adapter
//   - "http": Generic HTTP adapter
//   - "file": Local long or OPSD CSV file
//
// Returns error if kind is unknown or required fields are missing.
func New(kind string, config map[string]string) (Adapter, error) {
	switch kind {
	case "opsd":
		return newOPSD(config)
	case "http":
		return newHTTP(config)
	case "file":
		return newFile(config)
	default:
		return nil, fmt.Errorf("unknown adapter kind: %s (must be opsd, http or file)", kind)
	}
}

// newOPSD creates an OPSD adapter from generic config.
func newOPSD(config map[string]string) (Adapter, error) {
	url := config["url"]
	if url == "" {
		url = DefaultOPSDURL
	}

	return &OPSDAdapter{
		URL:       url,
		Countries: splitList(config["countries"]),
		Suffix:    config["suffix"],
		Output:    config["output"],
	}, nil
}

// newHTTP creates a generic HTTP adapter from generic config.
func newHTTP(config map[string]string) (Adapter, error) {
	url := config["url"]
	if url == "" {
		return nil, fmt.Errorf("http adapter requires 'url' config")
	}

	timestampPath := config["timestampPath"]
	if timestampPath == "" || config["valuePaths"] == "" {
		return nil, fmt.Errorf("http adapter requires 'valuePaths' and 'timestampPath' config")
	}

	var valuePaths map[string]string
	if err := json.Unmarshal([]byte(config["valuePaths"]), &valuePaths); err != nil {
		return nil, fmt.Errorf("invalid 'valuePaths' JSON: %w", err)
	}

	method := config["method"]
	if method == "" {
		method = "GET"
	}

	timestampFormat := config["timestampFormat"]
	if timestampFormat == "" {
		timestampFormat = "rfc3339"
	}

	var headers map[string]string
	if headersJSON := config["headers"]; headersJSON != "" {
		if err := json.Unmarshal([]byte(headersJSON), &headers); err != nil {
			return nil, fmt.Errorf("invalid 'headers' JSON: %w", err)
		}
	}

	var templateVars map[string]string
	if varsJSON := config["templateVars"]; varsJSON != "" {
		if err := json.Unmarshal([]byte(varsJSON), &templateVars); err != nil {
			return nil, fmt.Errorf("invalid 'templateVars' JSON: %w", err)
		}
	}

	a := &HTTPAdapter{
		URL:             url,
		Method:          method,
		Headers:         headers,
		Body:            config["body"],
		Series:          config["series"],
		TimestampPath:   timestampPath,
		ValuePaths:      valuePaths,
		TimestampFormat: timestampFormat,
		TemplateVars:    templateVars,
	}
	if err := a.ValidateConfig(); err != nil {
		return nil, fmt.Errorf("http adapter: %w", err)
	}
	return a, nil
}

// newFile creates a file adapter from generic config.
func newFile(config map[string]string) (Adapter, error) {
	path := config["path"]
	if path == "" {
		return nil, fmt.Errorf("file adapter requires 'path' config")
	}

	format := config["format"]
	if format == "" {
		format = FormatLong
	}
	if format != FormatLong && format != FormatOPSD {
		return nil, fmt.Errorf("file adapter: unknown format %q (must be %s or %s)", format, FormatLong, FormatOPSD)
	}

	return &FileAdapter{
		Path:   path,
		Format: format,
		Layout: dataio.Layout{
			TimeColumn:   config["timeColumn"],
			SeriesColumn: config["seriesColumn"],
			TimeFormat:   config["timeFormat"],
		},
		Countries: splitList(config["countries"]),
		Output:    config["output"],
	}, nil
}

func splitList(s string) []string {
	var out []string
	for item := range strings.SplitSeq(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
