// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

package xrpc

import (
	"errors"
	"fmt"
)

// Error is a structured XRPC error envelope: any 4xx response whose
// JSON body has the shape {"error": ..., "message": ...}. Callers
// use errors.As to extract it:
//
//	var xrpcErr *xrpc.Error
//	if errors.As(err, &xrpcErr) {
//	    if xrpcErr.Code == xrpc.CodeRecordNotFound { ... }
//	}
type Error struct {
	// Code is the endpoint-defined error name (e.g. "RecordNotFound",
	// "InvalidSwap").
	Code string `json:"error"`
	// Message is the human-readable description from the server.
	Message string `json:"message"`
	// StatusCode is the HTTP status of the response.
	StatusCode int `json:"-"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("xrpc: %s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// Error codes common across endpoints. Endpoint-specific codes are
// declared next to their endpoint types in api/.
const (
	CodeInvalidRequest     = "InvalidRequest"
	CodeExpiredToken       = "ExpiredToken"
	CodeInvalidToken       = "InvalidToken"
	CodeAuthRequired       = "AuthenticationRequired"
	CodeAccountDeactivated = "AccountDeactivated"
	CodeAccountTakedown    = "AccountTakedown"
	CodeRecordNotFound     = "RecordNotFound"
	CodeInvalidSwap        = "InvalidSwap"
	CodeRepoNotFound       = "RepoNotFound"
	CodeFutureCursor       = "FutureCursor"
	CodeUseDPoPNonce       = "use_dpop_nonce"
)

// IsError checks whether err is an *Error with the given code.
func IsError(err error, code string) bool {
	var xrpcErr *Error
	if errors.As(err, &xrpcErr) {
		return xrpcErr.Code == code
	}
	return false
}

// AuthError is an authentication failure. Recoverable auth errors
// (expired access token) carry Fatal == false and trigger one silent
// refresh in the agent layer; Fatal errors (rejected refresh token,
// deactivated account) short-circuit subsequent calls until the
// caller re-authenticates.
type AuthError struct {
	// Code is the error name when the server sent an envelope
	// ("ExpiredToken", "InvalidToken"), otherwise empty.
	Code string
	// Message describes the failure.
	Message string
	// Fatal marks the session as unusable without re-authentication.
	Fatal bool
	// Challenge is the WWW-Authenticate header of a 401 response,
	// when present. The DPoP retry logic inspects it for
	// error="use_dpop_nonce".
	Challenge string
}

func (e *AuthError) Error() string {
	if e.Fatal {
		return fmt.Sprintf("xrpc: auth failed permanently: %s %s", e.Code, e.Message)
	}
	return fmt.Sprintf("xrpc: auth failed: %s %s", e.Code, e.Message)
}

// AsAuthError extracts an *AuthError from err, if present.
func AsAuthError(err error) (*AuthError, bool) {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr, true
	}
	return nil, false
}

// HTTPError is a non-2xx response that does not carry the XRPC error
// envelope: proxies, load balancers, and 5xx responses.
type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	body := string(e.Body)
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("xrpc: HTTP %d: %s", e.StatusCode, body)
}
