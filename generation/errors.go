// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package generation

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidResponse is returned when a backend answers with no usable text.
	ErrInvalidResponse = errors.New("invalid response from provider")

	// ErrDuplicateName is returned when two providers share a name.
	ErrDuplicateName = errors.New("duplicate provider name")

	// ErrDuplicatePriority is returned when two providers share a priority.
	ErrDuplicatePriority = errors.New("duplicate provider priority")

	// ErrMissingField is returned when a backend lacks a required field.
	ErrMissingField = errors.New("missing required provider field")

	// ErrUnknownKind is returned for an unrecognized backend kind.
	ErrUnknownKind = errors.New("unknown provider kind")
)

// FailureReason classifies a failed provider attempt.
type FailureReason string

const (
	ReasonTimeout         FailureReason = "timeout"
	ReasonBadStatus       FailureReason = "bad_status"
	ReasonInvalidResponse FailureReason = "invalid_response"
	ReasonCanceled        FailureReason = "canceled"
)

// ConfigurationError means no usable provider is configured. No backend is
// contacted when it is returned.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "generation not configured: " + e.Reason
}

// ProviderError records one failed attempt.
type ProviderError struct {
	Provider string
	Reason   FailureReason
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("provider %s: %s", e.Provider, e.Reason)
	}
	return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Reason, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ServiceUnavailableError is returned when no provider produced an answer.
// Failures lists each attempted provider once, in attempt order. Cause is set
// when the caller's context ended the fallback early.
type ServiceUnavailableError struct {
	Failures []ProviderError
	Cause    error
}

func (e *ServiceUnavailableError) Error() string {
	var b strings.Builder
	b.WriteString("all generation providers failed")
	if e.Cause != nil {
		fmt.Fprintf(&b, " (%v)", e.Cause)
	}
	for i, f := range e.Failures {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%s=%s", f.Provider, f.Reason)
	}
	return b.String()
}

func (e *ServiceUnavailableError) Unwrap() error {
	return e.Cause
}
