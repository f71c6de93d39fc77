// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 L5 Contributors

package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigParseInvalidFormat   Code = "config.parse.invalid_format"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"
	CodeConfigAlreadyExists        Code = "config.bootstrap.conflict"

	CodeUpstreamRequestInvalid       Code = "upstream.request.invalid"
	CodeUpstreamRequestFailure       Code = "upstream.request.failure"
	CodeUpstreamRequestTimeout       Code = "upstream.request.timeout"
	CodeUpstreamResponseStatus       Code = "upstream.response.status.failure"
	CodeUpstreamResponseUnauthorized Code = "upstream.response.unauthorized"
	CodeUpstreamResponseDecode       Code = "upstream.response.decode.invalid_format"
	CodeUpstreamTimestampInvalid     Code = "upstream.timestamp.invalid_format"

	CodeCarbonRegistryNoFallback  Code = "carbon.registry.no_fallback"
	CodeCarbonProviderNotFound    Code = "carbon.registry.not_found"
	CodeCarbonRequestInvalid      Code = "carbon.request.invalid"
	CodeCarbonPayloadMissingField Code = "carbon.payload.missing_field"
	CodeCarbonAuthTokenMissing    Code = "carbon.auth.token.missing_field"

	CodeCapacityGroupsNotFound Code = "capacity.groups.not_found"
	CodeCapacityScoresNotFound Code = "capacity.scores.not_found"

	CodeFreshnessSourceNotFound Code = "freshness.source.not_found"
	CodeFreshnessProbeMissing   Code = "freshness.probe.invalid"

	CodeSecretNotFound           Code = "secret.get.not_found"
	CodeSecretInvalidInput       Code = "secret.input.invalid"
	CodeSecretListFailure        Code = "secret.list.failure"
	CodeSecretStoreFailure       Code = "secret.store.failure"
	CodeSecretDeleteFailure      Code = "secret.delete.failure"
	CodeSecretResolveFailure     Code = "secret.resolve.failure"
	CodeSecretCredentialsMissing Code = "secret.credentials.missing"

	CodeServerConfigInvalid   Code = "server.config.invalid"
	CodeServerStartFailure    Code = "server.start.failure"
	CodeServerShutdownFailure Code = "server.shutdown.failure"
	CodeServerInternalFailure Code = "server.internal.failure"

	CodeCLIInputInvalid   Code = "cli.input.invalid"
	CodeCLISetupFailure   Code = "cli.setup.failure"
	CodeCLIRequestFailure Code = "cli.request.failure"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// FieldValue creates a structured error field.
func FieldValue(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

// Field is kept as the primary helper for terse callsites.
func Field(key string, value any) Attr {
	return FieldValue(key, value)
}

func FieldSource(value string) Attr {
	return Field("source", value)
}

func FieldProvider(value string) Attr {
	return Field("provider", value)
}

func FieldRegion(value string) Attr {
	return Field("region", value)
}

func FieldURL(value string) Attr {
	return Field("url", value)
}

func FieldStatus(value int) Attr {
	return Field("status", value)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).Wrapf(err, format, args...)
}

// With adds structured fields to an existing error chain.
func With(err error, fields ...Attr) error {
	if err == nil {
		return nil
	}

	code := CodeOf(err)
	if code == "" {
		code = CodeServerInternalFailure
	}

	return oops.Code(code).With(flatten(fields)...).Wrap(err)
}

func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	if code, ok := oopsErr.Code().(Code); ok {
		return code
	}

	if code, ok := oopsErr.Code().(string); ok {
		return Code(code)
	}

	return Code(fmt.Sprintf("%v", oopsErr.Code()))
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}

	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

func IsConflict(err error) bool {
	return reason(CodeOf(err)) == "conflict"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value" || r == "invalid_format"
}

func IsUnauthorized(err error) bool {
	r := reason(CodeOf(err))
	return r == "unauthorized" || r == "forbidden" || r == "denied"
}

func IsMissing(err error) bool {
	r := reason(CodeOf(err))
	return r == "missing" || r == "missing_field"
}

func IsTimeout(err error) bool {
	return reason(CodeOf(err)) == "timeout"
}

func IsUpstreamFailure(err error) bool {
	code := CodeOf(err)
	return strings.Contains(string(code), "upstream") && reason(code) == "failure"
}

func HTTPStatus(err error) int {
	switch {
	case IsNotFound(err):
		return http.StatusNotFound
	case IsConflict(err):
		return http.StatusConflict
	case IsInvalidInput(err):
		if strings.HasPrefix(string(CodeOf(err)), "upstream.") {
			return http.StatusBadGateway
		}
		return http.StatusBadRequest
	case IsUnauthorized(err):
		if reason(CodeOf(err)) == "forbidden" || reason(CodeOf(err)) == "denied" {
			return http.StatusForbidden
		}
		return http.StatusUnauthorized
	case IsTimeout(err):
		return http.StatusGatewayTimeout
	case IsUpstreamFailure(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func Join(errs ...error) error {
	return oops.Code(CodeServerInternalFailure).Wrap(stderrors.Join(errs...))
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}

	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
