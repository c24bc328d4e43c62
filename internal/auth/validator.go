// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Noteful Contributors

package auth

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Registration field constraints.
const (
	MinUsernameLength = 1
	MinPasswordLength = 8
	MaxPasswordLength = 72
)

// ValidationKind identifies which registration rule failed.
type ValidationKind string

// Validation kinds, one per rule family.
const (
	MissingField ValidationKind = "MissingField"
	TypeMismatch ValidationKind = "TypeMismatch"
	NotTrimmed   ValidationKind = "NotTrimmed"
	TooShort     ValidationKind = "TooShort"
	TooLong      ValidationKind = "TooLong"
)

// ValidationError describes the first registration rule a payload violated.
// It is always user-correctable.
type ValidationError struct {
	Kind  ValidationKind
	Field string
	// Expected is the required type name for TypeMismatch.
	Expected string
	// Limit is the length bound for TooShort and TooLong.
	Limit int
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case MissingField:
		return fmt.Sprintf("Missing '%s' in request body", e.Field)
	case TypeMismatch:
		return fmt.Sprintf("Field: '%s' must be type %s", e.Field, e.Expected)
	case NotTrimmed:
		return fmt.Sprintf("Field: '%s' cannot start or end with whitespace", e.Field)
	case TooShort:
		return fmt.Sprintf("Field: '%s' must be at least %d characters long", e.Field, e.Limit)
	case TooLong:
		return fmt.Sprintf("Field: '%s' must be at most %d characters long", e.Field, e.Limit)
	default:
		return fmt.Sprintf("Field: '%s' is invalid", e.Field)
	}
}

// RegistrationInput is a registration payload that passed validation.
type RegistrationInput struct {
	Username string
	Password string
	Fullname string
}

// rule inspects the payload and reports a violation, or nil. Each rule may
// assume every earlier rule in registrationRules passed.
type rule func(payload map[string]any) *ValidationError

// registrationRules is evaluated in order until the first failure. Clients
// key their messages off which rule fires, so the order is part of the API.
var registrationRules = []rule{
	required("username"),
	required("password"),
	isString("username"),
	isString("password"),
	trimmed("username"),
	trimmed("password"),
	minLength("username", MinUsernameLength),
	minLength("password", MinPasswordLength),
	maxLength("password", MaxPasswordLength),
}

// ValidateRegistration checks a decoded registration payload and returns the
// normalized input. On failure the error is a *ValidationError.
func ValidateRegistration(payload map[string]any) (RegistrationInput, error) {
	for _, check := range registrationRules {
		if verr := check(payload); verr != nil {
			return RegistrationInput{}, verr
		}
	}

	in := RegistrationInput{
		Username: payload["username"].(string),
		Password: payload["password"].(string),
	}
	in.Fullname = fullnameOf(payload["fullname"])
	return in, nil
}

// fullnameOf normalizes the optional fullname. Scalars are cast to their
// string form; null, objects and arrays yield "". It never rejects.
func fullnameOf(v any) string {
	switch v := v.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool, int, int64, json.Number:
		return strings.TrimSpace(fmt.Sprint(v))
	default:
		return ""
	}
}

func required(field string) rule {
	return func(payload map[string]any) *ValidationError {
		if _, ok := payload[field]; !ok {
			return &ValidationError{Kind: MissingField, Field: field}
		}
		return nil
	}
}

func isString(field string) rule {
	return func(payload map[string]any) *ValidationError {
		if _, ok := payload[field].(string); !ok {
			return &ValidationError{Kind: TypeMismatch, Field: field, Expected: "String"}
		}
		return nil
	}
}

func trimmed(field string) rule {
	return func(payload map[string]any) *ValidationError {
		s, _ := payload[field].(string)
		if strings.TrimSpace(s) != s {
			return &ValidationError{Kind: NotTrimmed, Field: field}
		}
		return nil
	}
}

func minLength(field string, limit int) rule {
	return func(payload map[string]any) *ValidationError {
		s, _ := payload[field].(string)
		if utf8.RuneCountInString(s) < limit {
			return &ValidationError{Kind: TooShort, Field: field, Limit: limit}
		}
		return nil
	}
}

func maxLength(field string, limit int) rule {
	return func(payload map[string]any) *ValidationError {
		s, _ := payload[field].(string)
		if utf8.RuneCountInString(s) > limit {
			return &ValidationError{Kind: TooLong, Field: field, Limit: limit}
		}
		return nil
	}
}
