// Package core provides the business logic for ShotGrid to OMC conversion.
//
// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support
// reference. When users encounter errors, they can quote the error code to
// support staff for faster diagnosis.
//
// Error codes are grouped by category:
//
// # Source File Errors (CSV001-CSV099)
//
// Errors raised while reading or parsing the uploaded export:
//
//	CSV001 - Invalid CSV: The file could not be parsed as CSV
//	CSV002 - Empty file: The uploaded file contains no data
//	CSV003 - Header not found: No row looks like a ShotGrid task header
//	CSV004 - No file: No file was selected
//	CSV005 - File too large: The file exceeds the upload size limit
//
// # Conversion Errors (CNV001-CNV099)
//
// Errors raised by the conversion run lifecycle:
//
//	CNV001 - Cancelled: The conversion was cancelled by the user
//	CNV002 - System busy: Too many conversions in progress
//	CNV003 - Not found: The conversion run does not exist or has expired
//	CNV004 - Request cancelled: The request was cancelled
//	CNV005 - Request timeout: The request timed out
//	CNV006 - Export failed: The output document could not be written
//	CNV007 - Still running: The conversion has not finished yet
//	CNV008 - No document: The run finished without producing a document
//
// # Verification Errors (VER001-VER099)
//
// Errors raised while submitting a document to the external schema checker:
//
//	VER001 - Checker unreachable: The schema checker could not be reached
//	VER002 - Checker rejected: The schema checker returned an error status
//	VER003 - Not configured: No schema checker URL is configured
//	VER004 - Bad report: The checker's report could not be decoded
//
// # Database Errors (DB001-DB099)
//
// Errors raised by run history and audit persistence:
//
//	DB001 - Connection refused: Unable to connect to the database
//	DB002 - Connection reset: The database connection was interrupted
//	DB003 - Deadlock: The database was busy with conflicting operations
//	DB004 - Timeout: The operation timed out
//	DB005 - No history: Run history is not enabled on this server
//
// # Rate Limiting (RATE001-RATE099)
//
//	RATE001 - Rate limited: Too many requests
//
// # Default Error (ERR000)
//
// Fallback when no specific pattern matches. Support staff should check the
// application logs for the original technical error when users report ERR000.
//
// # Pattern Matching
//
// Error patterns are matched case-insensitively using strings.Contains. The
// first matching pattern wins, so more specific patterns are defined before
// general ones.
package core

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user
// messages. Patterns are matched using strings.Contains and the first match
// wins, so more specific patterns come before general ones.
var errorPatterns = []errorPattern{
	// =========================================================================
	// Source File Errors (CSV001-CSV005)
	// Raised while reading or parsing the uploaded export.
	// =========================================================================
	{
		pattern: "parse csv",
		msg: UserMessage{
			Message: "The file could not be parsed as CSV",
			Action:  "Re-export the task list from ShotGrid as a CSV file",
			Code:    "CSV001",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file contains no data",
			Action:  "Upload a ShotGrid export with at least one task row",
			Code:    "CSV002",
		},
	},
	{
		pattern: "header not found",
		msg: UserMessage{
			Message: "No row in the file looks like a ShotGrid task header",
			Action:  "Check that the export includes the Id column and the usual task columns",
			Code:    "CSV003",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Choose a ShotGrid CSV export to convert",
			Code:    "CSV004",
		},
	},
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "The file exceeds the upload size limit",
			Action:  "Split the export into smaller files",
			Code:    "CSV005",
		},
	},
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "The file exceeds the upload size limit",
			Action:  "Split the export into smaller files",
			Code:    "CSV005",
		},
	},

	// =========================================================================
	// Conversion Errors (CNV001-CNV008)
	// Raised by the conversion run lifecycle.
	// =========================================================================
	{
		pattern: "conversion cancelled",
		msg: UserMessage{
			Message: "The conversion was cancelled",
			Action:  "Start a new conversion when ready",
			Code:    "CNV001",
		},
	},
	{
		pattern: "too many concurrent conversions",
		msg: UserMessage{
			Message: "The system is busy processing other conversions",
			Action:  "Please wait a moment and try again",
			Code:    "CNV002",
		},
	},
	{
		pattern: "conversion not found",
		msg: UserMessage{
			Message: "The conversion run does not exist or has expired",
			Action:  "Start a new conversion",
			Code:    "CNV003",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "The request was cancelled",
			Action:  "Please try again",
			Code:    "CNV004",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "The request timed out",
			Action:  "Try a smaller file or check your connection",
			Code:    "CNV005",
		},
	},
	{
		pattern: "write document",
		msg: UserMessage{
			Message: "The output document could not be written",
			Action:  "Check the export directory and available disk space",
			Code:    "CNV006",
		},
	},
	{
		pattern: "still running",
		msg: UserMessage{
			Message: "The conversion has not finished yet",
			Action:  "Wait for the run to complete before fetching its result",
			Code:    "CNV007",
		},
	},
	{
		pattern: "produced no document",
		msg: UserMessage{
			Message: "The run finished without producing a document",
			Action:  "Check the run's result for its error, then convert again",
			Code:    "CNV008",
		},
	},

	// =========================================================================
	// Verification Errors (VER001-VER004)
	// Raised while talking to the external schema checker. The specific
	// patterns must stay ahead of the general one.
	// =========================================================================
	{
		pattern: "schema checker returned status",
		msg: UserMessage{
			Message: "The schema checker rejected the request",
			Action:  "Check the checker's availability and the configured endpoint",
			Code:    "VER002",
		},
	},
	{
		pattern: "schema checker not configured",
		msg: UserMessage{
			Message: "Verification is not enabled on this server",
			Action:  "Set VALIDATOR_URL to enable document verification",
			Code:    "VER003",
		},
	},
	{
		pattern: "checker report",
		msg: UserMessage{
			Message: "The schema checker sent a report this tool could not read",
			Action:  "Quote the run ID to support; the raw report is preserved in the logs",
			Code:    "VER004",
		},
	},
	{
		pattern: "schema checker",
		msg: UserMessage{
			Message: "The schema checker could not be reached",
			Action:  "Verify the checker URL and try again",
			Code:    "VER001",
		},
	},

	// =========================================================================
	// Database Errors (DB001-DB005)
	// Raised by run history and audit persistence.
	// =========================================================================
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to the database",
			Action:  "Please try again in a few moments",
			Code:    "DB001",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "The database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB002",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "The database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB003",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "The operation timed out",
			Action:  "Try again later",
			Code:    "DB004",
		},
	},
	{
		pattern: "history not configured",
		msg: UserMessage{
			Message: "Run history is not enabled on this server",
			Action:  "Set DATABASE_URL to enable conversion history",
			Code:    "DB005",
		},
	},

	// =========================================================================
	// Rate Limiting (RATE001)
	// =========================================================================
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message. It searches
// through known error patterns (case-insensitive) and returns the first
// match. If no pattern matches, a generic fallback with code ERR000 is
// returned.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether an error matches a known pattern and can be
// shown to users as-is, rather than only the generic ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its mapped user message. The
// original error stays available for logging via Unwrap while Error returns
// the clean user-facing text.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError creates a UserError by mapping a technical error.
// Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
