package respond

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
)

func TestSuccessEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	Success(rec, 201, "User registered successfully.", map[string]string{"access": "tok"})

	if rec.Code != 201 {
		t.Errorf("status = %d, want 201", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}

	var body map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if string(body["success"]) != "true" {
		t.Errorf("success = %s, want true", body["success"])
	}
	if _, ok := body["data"]; !ok {
		t.Error("success envelope must carry data")
	}
	if _, ok := body["errors"]; ok {
		t.Error("success envelope must not carry errors")
	}
}

func TestSuccessNilDataIsNull(t *testing.T) {
	rec := httptest.NewRecorder()
	Success(rec, 200, "Password reset link sent.", nil)

	var body map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if string(body["data"]) != "null" {
		t.Errorf("data = %s, want null", body["data"])
	}
}

func TestErrorEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, 400, "Validation failed", FieldErrors{"email": {"A user with this email already exists."}})

	var body struct {
		Success bool        `json:"success"`
		Message string      `json:"message"`
		Errors  FieldErrors `json:"errors"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body.Success {
		t.Error("success should be false")
	}
	if body.Message != "Validation failed" {
		t.Errorf("message = %q", body.Message)
	}
	if len(body.Errors["email"]) != 1 {
		t.Errorf("errors = %v", body.Errors)
	}
}

func TestErrorNilErrorsIsEmptyObject(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, 400, "Invalid credentials", nil)

	var body map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if string(body["errors"]) != "{}" {
		t.Errorf("errors = %s, want {}", body["errors"])
	}
}
