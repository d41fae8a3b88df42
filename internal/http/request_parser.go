// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data:
// JSON bodies, date ranges and CSV uploads.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"fuellog/internal/core"
)

const (
	maxJSONBodyBytes   = 1 << 20
	maxImportBodyBytes = 10 << 20

	importFormField = "file"
	dateOnlyLayout  = "2006-01-02"
)

var errEmptyBody = errors.New("request body is empty")

// MonthParams holds parsed year/month values from request parameters.
type MonthParams struct {
	Year  int
	Month time.Month
}

// DecodeJSON reads a single JSON object into dst. Unknown fields are
// rejected.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if dec.More() {
		return errors.New("invalid JSON body: trailing data")
	}
	return nil
}

// ParseMonthParams extracts year and month from query parameters. ok is false
// when neither is present; a missing year defaults to the current one.
func ParseMonthParams(query url.Values, now time.Time) (params MonthParams, ok bool, err error) {
	ys := strings.TrimSpace(query.Get("year"))
	ms := strings.TrimSpace(query.Get("month"))
	if ys == "" && ms == "" {
		return MonthParams{}, false, nil
	}

	params = MonthParams{Year: now.Year(), Month: now.Month()}
	if ys != "" {
		y, err := strconv.Atoi(ys)
		if err != nil || y < 1 {
			return MonthParams{}, true, fmt.Errorf("invalid year %q", ys)
		}
		params.Year = y
	}
	if ms != "" {
		m, err := strconv.Atoi(ms)
		if err != nil || m < 1 || m > 12 {
			return MonthParams{}, true, fmt.Errorf("invalid month %q", ms)
		}
		params.Month = time.Month(m)
	}
	return params, true, nil
}

// ParseRangeParams reads the optional "from" and "to" bounds. A date-only
// "to" covers the whole day.
func ParseRangeParams(query url.Values) (core.DateRange, error) {
	var rng core.DateRange
	if v := strings.TrimSpace(query.Get("from")); v != "" {
		t, err := parseDate(v)
		if err != nil {
			return core.DateRange{}, fmt.Errorf("invalid from: %w", err)
		}
		rng.Start = t
	}
	if v := strings.TrimSpace(query.Get("to")); v != "" {
		t, err := parseDate(v)
		if err != nil {
			return core.DateRange{}, fmt.Errorf("invalid to: %w", err)
		}
		if len(v) == len(dateOnlyLayout) {
			t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
		rng.End = t
	}
	if !rng.Start.IsZero() && !rng.End.IsZero() && rng.End.Before(rng.Start) {
		return core.DateRange{}, errors.New("to is before from")
	}
	return rng, nil
}

// parseDate accepts RFC 3339 timestamps and YYYY-MM-DD dates in UTC.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(dateOnlyLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q is neither RFC 3339 nor YYYY-MM-DD", s)
	}
	return t, nil
}

// ReadImportBody returns the uploaded interchange text, either from the
// multipart field "file" or from the raw request body.
func ReadImportBody(w http.ResponseWriter, r *http.Request) (string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		file, _, err := r.FormFile(importFormField)
		if err != nil {
			return "", fmt.Errorf("read upload: %w", err)
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return "", fmt.Errorf("read upload: %w", err)
		}
		return string(data), nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(data), nil
}

// sanitizeInput removes control characters except tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
