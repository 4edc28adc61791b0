// Callejero - Holy Week Events and Pedestrian Navigation
// Copyright 2026 Callejero Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/callejero-app/callejero

package models

import (
	"time"
)

// APIResponse is the standardized envelope used by all HTTP endpoints.
//
// Status field values:
//   - "success": request completed, see Data
//   - "error": request failed, see Error
//
// Example successful response:
//
//	{
//	  "status": "success",
//	  "data": {"eta_seconds": 420, ...},
//	  "metadata": {"timestamp": "2026-04-03T19:00:00Z", "compute_time_ms": 4}
//	}
//
// Example error response:
//
//	{
//	  "status": "error",
//	  "error": {"code": "INVALID_QUERY", "message": "..."},
//	  "metadata": {"timestamp": "2026-04-03T19:00:00Z"}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata carries response observability fields: server timestamp, route
// computation time in milliseconds, and whether the result came from the
// result cache (ComputeTimeMS is 0 on cache hits).
type Metadata struct {
	Timestamp     time.Time `json:"timestamp"`
	ComputeTimeMS int64     `json:"compute_time_ms,omitempty"`
	Cached        bool      `json:"cached,omitempty"`
}

// APIError is a structured error payload.
//
// Common error codes:
//   - VALIDATION_ERROR: invalid input parameters
//   - INVALID_QUERY: query missing exactly one of destination/target
//   - TARGET_UNRESOLVED: target reference could not be resolved to coordinates
//   - CONFIGURATION_ERROR: routing core unusable (empty graph)
//   - NOT_FOUND: requested resource does not exist
//   - RATE_LIMITED: caller exceeded the applicable rate limit
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
