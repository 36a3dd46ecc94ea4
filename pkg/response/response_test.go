package response

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/melosso/portway/pkg/apierrors"
)

func TestCollectionIncludesCountWhenProvided(t *testing.T) {
	rec := httptest.NewRecorder()
	count := int64(3)
	Collection(rec, "corr-1", []int{1, 2, 3}, &count, nil)

	var env Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if env.Count == nil || *env.Count != 3 {
		t.Errorf("Count = %v, want 3", env.Count)
	}
	if rec.Header().Get("X-Correlation-Id") != "corr-1" {
		t.Errorf("X-Correlation-Id = %q, want corr-1", rec.Header().Get("X-Correlation-Id"))
	}
}

func TestCollectionOmitsCountWhenNil(t *testing.T) {
	rec := httptest.NewRecorder()
	Collection(rec, "corr-1", []int{1}, nil, nil)

	var raw map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if raw["count"] != nil {
		t.Errorf("count = %v, want null", raw["count"])
	}
	if raw["nextLink"] != nil {
		t.Errorf("nextLink = %v, want null", raw["nextLink"])
	}
}

func TestCollectionIncludesNextLinkWhenProvided(t *testing.T) {
	rec := httptest.NewRecorder()
	next := "/prod/Widgets?$top=10&$skip=10"
	Collection(rec, "corr-1", []int{1}, nil, &next)

	var env Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if env.NextLink == nil || *env.NextLink != next {
		t.Errorf("NextLink = %v, want %q", env.NextLink, next)
	}
}

func TestItemSetsCorrelationHeaderAndStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	Item(rec, 201, "corr-2", map[string]string{"id": "1"})

	if rec.Code != 201 {
		t.Errorf("Code = %d, want 201", rec.Code)
	}
	if rec.Header().Get("X-Correlation-Id") != "corr-2" {
		t.Errorf("X-Correlation-Id = %q, want corr-2", rec.Header().Get("X-Correlation-Id"))
	}
}

func TestErrorMapsKindToHTTPStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, "corr-3", apierrors.New(apierrors.NotFound, "resource not found"))

	if rec.Code != 404 {
		t.Errorf("Code = %d, want 404", rec.Code)
	}
	var body ErrorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if body.Error != "resource not found" {
		t.Errorf("Error = %q, want %q", body.Error, "resource not found")
	}
	if body.TraceID != "corr-3" {
		t.Errorf("TraceID = %q, want corr-3", body.TraceID)
	}
}

func TestErrorWrapsNonApiErrorsAsInternal(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, "corr-4", errors.New("boom"))

	if rec.Code != 500 {
		t.Errorf("Code = %d, want 500", rec.Code)
	}
	var body ErrorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if body.Error != "internal error" {
		t.Errorf("Error = %q, want %q", body.Error, "internal error")
	}
}

func TestErrorPreservesExistingTraceID(t *testing.T) {
	rec := httptest.NewRecorder()
	err := apierrors.New(apierrors.BadRequest, "bad input").WithTraceID("preexisting")
	Error(rec, "corr-5", err)

	var body ErrorBody
	if unmarshalErr := json.Unmarshal(rec.Body.Bytes(), &body); unmarshalErr != nil {
		t.Fatalf("Unmarshal: %v", unmarshalErr)
	}
	if body.TraceID != "preexisting" {
		t.Errorf("TraceID = %q, want preexisting (should not be overwritten)", body.TraceID)
	}
}

func TestErrorIncludesDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	err := apierrors.New(apierrors.UnprocessableEntity, "Validation failed").
		WithDetails(apierrors.Detail{Field: "Name", Message: "required"})
	Error(rec, "corr-6", err)

	var body ErrorBody
	if unmarshalErr := json.Unmarshal(rec.Body.Bytes(), &body); unmarshalErr != nil {
		t.Fatalf("Unmarshal: %v", unmarshalErr)
	}
	if body.Error != "Validation failed" {
		t.Errorf("Error = %q, want %q", body.Error, "Validation failed")
	}
	if len(body.Details) != 1 || body.Details[0].Field != "Name" || body.Details[0].Message != "required" {
		t.Errorf("Details = %v, want a single {Name, required} detail", body.Details)
	}
}
