/*
response.go - Result codes and the response envelope

PURPOSE:
  Every response carries three things: an HTTP status, a short result code
  (X-Result-Code) and a human-readable description (X-Result-Description).
  The body is the endpoint's JSON object, pretty printed.

RESULT CODES:
  000  request processed
  101  no billable obligations
  201  business rejection (description names the reason or failed step)
  401  user and password missing
  402  password missing
  403  user missing
  404  entity missing
  405  invalid credentials
  501  ledger unavailable ("connection problems: <entity>")
  502  malformed payload
  503  field format violation ("invalid format for <field>")

STATUS MAPPING:
  code   obligations group   customer group
  000    200                 200
  101    200                 200
  201    200                 404
  401-5  -                   401
  501    200                 404
  502    400                 400
  503    400                 400

SEE ALSO:
  - settlement/errors.go: the errors mapped here
  - auth.go: produces 401-405
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/warp/settlement-bridge/settlement"
)

// Response headers carrying the result.
const (
	HeaderResultCode        = "X-Result-Code"
	HeaderResultDescription = "X-Result-Description"
)

// Result codes.
const (
	CodeOK                 = "000"
	CodeNothingToBill      = "101"
	CodeRejected           = "201"
	CodeMissingCredentials = "401"
	CodeMissingPassword    = "402"
	CodeMissingUser        = "403"
	CodeMissingEntity      = "404"
	CodeBadCredentials     = "405"
	CodeUnavailable        = "501"
	CodeInvalidPayload     = "502"
	CodeInvalidFormat      = "503"
)

var descriptions = map[string]string{
	CodeOK:                 "request processed",
	CodeNothingToBill:      "no billable obligations found",
	CodeMissingCredentials: "user and password are required",
	CodeMissingPassword:    "password is required",
	CodeMissingUser:        "user is required",
	CodeMissingEntity:      "entity is required",
	CodeBadCredentials:     "invalid credentials",
	CodeUnavailable:        "connection problems",
	CodeInvalidPayload:     "invalid payload",
	CodeInvalidFormat:      "invalid format",
}

// group selects the status mapping of an endpoint family.
type group int

const (
	groupObligations group = iota // payment order endpoints
	groupCustomer                 // credential-gated customer endpoints
)

type result struct {
	Code        string
	Description string
}

func resultOf(code string) result {
	return result{Code: code, Description: descriptions[code]}
}

// statusFor maps a result code onto the HTTP status for a group.
func statusFor(g group, code string) int {
	switch code {
	case CodeOK, CodeNothingToBill:
		return http.StatusOK
	case CodeInvalidPayload, CodeInvalidFormat:
		return http.StatusBadRequest
	case CodeMissingCredentials, CodeMissingPassword, CodeMissingUser,
		CodeMissingEntity, CodeBadCredentials:
		return http.StatusUnauthorized
	case CodeRejected, CodeUnavailable:
		if g == groupCustomer {
			return http.StatusNotFound
		}
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}

// resultFor maps a workflow or validation error onto a result.
//
// StepError is checked before the business sentinels because a failed step
// may wrap one; the caller needs the step, not the cause.
func resultFor(err error) result {
	var validationErr *settlement.ValidationError
	var stepErr *settlement.StepError
	var unavailableErr *settlement.UnavailableError

	switch {
	case errors.As(err, &validationErr):
		if validationErr.Format {
			return result{Code: CodeInvalidFormat, Description: "invalid format for " + validationErr.Field}
		}
		return resultOf(CodeInvalidPayload)
	case errors.Is(err, settlement.ErrNoBillableObligations):
		return resultOf(CodeNothingToBill)
	case errors.As(err, &stepErr):
		return result{Code: CodeRejected, Description: stepErr.Description}
	case errors.Is(err, settlement.ErrCountUnavailable):
		return result{Code: CodeRejected, Description: "could not obtain next payment order code"}
	case settlement.IsBusinessRejection(err):
		return result{Code: CodeRejected, Description: err.Error()}
	case errors.As(err, &unavailableErr):
		return result{Code: CodeUnavailable, Description: "connection problems: " + unavailableErr.Entity}
	default:
		return resultOf(CodeUnavailable)
	}
}

// writeResult writes the envelope and the pretty-printed body.
func writeResult(w http.ResponseWriter, g group, res result, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(HeaderResultCode, res.Code)
	w.Header().Set(HeaderResultDescription, res.Description)
	w.WriteHeader(statusFor(g, res.Code))

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(body)
}

// writeJSON writes a plain JSON response without a result envelope.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
