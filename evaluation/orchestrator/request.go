package orchestrator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"finbench/internal/corpus"
	"finbench/internal/domain/benchmark"
)

// Request is one evaluation request: the participating agents by role and
// the document selection.
type Request struct {
	Participants map[string]string `json:"participants"`
	Config       RequestConfig     `json:"config"`
}

// RequestConfig selects the document. An empty CompanyID asks for a random
// document of Year.
type RequestConfig struct {
	Year      int    `json:"year"`
	CompanyID string `json:"company_id,omitempty"`
}

// ParseRequest decodes a request body. Year and company id may be JSON
// numbers or strings, and "cik" is accepted as an alias of "company_id".
func ParseRequest(raw []byte) (Request, error) {
	var wire struct {
		Participants map[string]string `json:"participants"`
		Config       map[string]any    `json:"config"`
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&wire); err != nil {
		return Request{}, invalidRequest("request is not a valid evaluation request: %v", err)
	}
	if wire.Config == nil {
		return Request{}, invalidRequest("missing config")
	}

	year, err := intValue(wire.Config["year"])
	if err != nil {
		return Request{}, invalidRequest("config.year: %v", err)
	}
	companyRaw, ok := wire.Config["company_id"]
	if !ok {
		companyRaw = wire.Config["cik"]
	}
	companyID, err := stringValue(companyRaw)
	if err != nil {
		return Request{}, invalidRequest("config.company_id: %v", err)
	}

	participants := make(map[string]string, len(wire.Participants))
	for role, endpoint := range wire.Participants {
		participants[strings.TrimSpace(role)] = strings.TrimSpace(endpoint)
	}
	return Request{
		Participants: participants,
		Config:       RequestConfig{Year: year, CompanyID: corpus.NormalizeCompanyID(companyID)},
	}, nil
}

func intValue(v any) (int, error) {
	switch t := v.(type) {
	case nil:
		return 0, fmt.Errorf("required")
	case json.Number:
		n, err := strconv.Atoi(t.String())
		if err != nil {
			return 0, fmt.Errorf("%q is not an integer", t)
		}
		return n, nil
	case float64:
		if t != float64(int(t)) {
			return 0, fmt.Errorf("%v is not an integer", t)
		}
		return int(t), nil
	case int:
		return t, nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, fmt.Errorf("%q is not an integer", t)
		}
		return n, nil
	}
	return 0, fmt.Errorf("unsupported type %T", v)
}

func stringValue(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(t), nil
	case json.Number:
		return t.String(), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(t), nil
	}
	return "", fmt.Errorf("unsupported type %T", v)
}

func invalidRequest(format string, args ...any) error {
	return benchmark.NewError(benchmark.KindInvalidRequest, "", fmt.Errorf(format, args...))
}
