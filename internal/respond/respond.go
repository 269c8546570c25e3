// Package respond writes the uniform API envelope shared by every endpoint.
//
// Success responses always carry "data" (possibly null), error responses
// always carry "errors" (defaulting to an empty object):
//
//	{"success": true,  "message": "...", "data": ...}
//	{"success": false, "message": "...", "errors": {...}}
package respond

import (
	"encoding/json"
	"net/http"
)

// FieldErrors maps a field name to its validation messages.
type FieldErrors map[string][]string

type successEnvelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

type errorEnvelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Errors  FieldErrors `json:"errors"`
}

// Success writes a success envelope with the given status, message and data.
// Data is serialized as null when nil.
func Success(w http.ResponseWriter, status int, message string, data interface{}) {
	write(w, status, successEnvelope{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Error writes an error envelope. A nil errs is rendered as an empty object.
func Error(w http.ResponseWriter, status int, message string, errs FieldErrors) {
	if errs == nil {
		errs = FieldErrors{}
	}
	write(w, status, errorEnvelope{
		Success: false,
		Message: message,
		Errors:  errs,
	})
}

// FieldError writes an error envelope carrying a single field violation.
func FieldError(w http.ResponseWriter, status int, message, field, detail string) {
	Error(w, status, message, FieldErrors{field: {detail}})
}

func write(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
