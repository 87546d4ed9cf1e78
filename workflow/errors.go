//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package workflow

import (
	"fmt"
	"strings"
)

// JSONParseError reports that a model response could not be parsed as
// JSON. RawResponse carries the full response for diagnostics.
type JSONParseError struct {
	Reason      string
	RawResponse string
}

// Error implements error.
func (e *JSONParseError) Error() string {
	return fmt.Sprintf("parse JSON response: %s", e.Reason)
}

// SchemaValidationError reports that a model response failed schema
// validation after every retry attempt.
type SchemaValidationError struct {
	SchemaName  string
	Errors      []string
	RawResponse string
}

// Error implements error.
func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("response does not match schema %q: %s",
		e.SchemaName, strings.Join(e.Errors, "; "))
}
