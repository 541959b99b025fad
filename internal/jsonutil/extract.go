// Package jsonutil recovers JSON values from free-form model and agent output.
package jsonutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// ErrNoJSON is returned when text holds nothing that parses as JSON.
var ErrNoJSON = errors.New("no JSON value found")

// Extract returns the first JSON value found in text. It strips markdown code
// fences, narrows to the outermost object or array and, as a last resort,
// runs jsonrepair over the candidate span.
func Extract(text string) ([]byte, error) {
	text = StripFences(text)
	if text == "" {
		return nil, ErrNoJSON
	}
	if json.Valid([]byte(text)) {
		return []byte(text), nil
	}

	span := outermostSpan(text)
	if span != "" && json.Valid([]byte(span)) {
		return []byte(span), nil
	}
	if span == "" {
		span = text
	}

	repaired, err := jsonrepair.JSONRepair(span)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoJSON, err)
	}
	if !json.Valid([]byte(repaired)) {
		return nil, ErrNoJSON
	}
	return []byte(repaired), nil
}

// Decode extracts a JSON value from text and unmarshals it into v.
func Decode(text string, v any) error {
	raw, err := Extract(text)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// StripFences removes a surrounding ``` or ```json fence.
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	body := strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		// drop the info string ("json", "JSON", ...)
		if info := strings.TrimSpace(body[:nl]); !strings.ContainsAny(info, "{[") {
			body = body[nl+1:]
		}
	}
	if end := strings.LastIndex(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

func outermostSpan(text string) string {
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return ""
	}
	closer := byte('}')
	if text[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(text, closer)
	if end <= start {
		return text[start:]
	}
	return text[start : end+1]
}
