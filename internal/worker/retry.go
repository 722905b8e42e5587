// Package worker drives one ScrapeJob from PENDING to a terminal state,
// generalizing the job lifecycle the teacher's ScrapeStatus enum names but
// never implements as an explicit state machine.
package worker

import (
	"encoding/json"

	"github.com/learnbot/autoscraper/internal/model"
)

// Class classifies a failed ScrapeRun for retry purposes, replacing
// exception-for-control-flow with an explicit pattern match (spec.md §9).
type Class int

const (
	// ClassRetryable covers transient network failures: timeouts,
	// connection reset, DNS failure, 429, 5xx.
	ClassRetryable Class = iota
	// ClassNonRetryable covers parse errors and 4xx other than 429; the
	// current page fails but the job proceeds to the next page.
	ClassNonRetryable
	// ClassFatal covers configuration errors (e.g. missing selectors)
	// that cannot succeed on any page; the job fails immediately.
	ClassFatal
)

type errDetail struct {
	Reason string `json:"reason"`
}

// Classify inspects a failed ScrapeRun's HTTP status and error_details
// reason to decide how the worker should react, generalizing
// httpclient.isRetryableError / isRetryableStatus.
func Classify(run model.ScrapeRun) Class {
	var detail errDetail
	if len(run.ErrorDetails) > 0 {
		_ = json.Unmarshal(run.ErrorDetails, &detail)
	}

	switch detail.Reason {
	case "config":
		return ClassFatal
	case "parse", "robots":
		return ClassNonRetryable
	case "network", "rate_limit":
		return ClassRetryable
	case "http_status":
		if run.HTTPStatusCode.Valid && isRetryableStatus(int(run.HTTPStatusCode.Int32)) {
			return ClassRetryable
		}
		return ClassNonRetryable
	default:
		return ClassRetryable
	}
}

func isRetryableStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
