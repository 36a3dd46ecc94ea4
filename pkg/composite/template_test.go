package composite

import "testing"

func TestRenderStringSimpleField(t *testing.T) {
	scope := Scope{"$request": map[string]any{"customerId": "cust-1"}}
	got, err := RenderString(`{"id":"{{$request.customerId}}"}`, scope)
	if err != nil {
		t.Fatalf("RenderString: %v", err)
	}
	want := `{"id":"cust-1"}`
	if got != want {
		t.Errorf("RenderString() = %q, want %q", got, want)
	}
}

func TestRenderStringStepReferenceWithArrayIndex(t *testing.T) {
	scope := Scope{
		"lookupCustomer": map[string]any{
			"items": []any{
				map[string]any{"id": "abc"},
			},
		},
	}
	got, err := RenderString(`{"customer":"{{lookupCustomer.items[0].id}}"}`, scope)
	if err != nil {
		t.Fatalf("RenderString: %v", err)
	}
	if got != `{"customer":"abc"}` {
		t.Errorf("RenderString() = %q", got)
	}
}

func TestRenderStringUnknownRootFails(t *testing.T) {
	scope := Scope{}
	if _, err := RenderString("{{missingStep.field}}", scope); err == nil {
		t.Error("expected error for unknown template root")
	}
}

func TestRenderStringIndexOutOfRange(t *testing.T) {
	scope := Scope{"step": map[string]any{"items": []any{}}}
	if _, err := RenderString("{{step.items[0]}}", scope); err == nil {
		t.Error("expected error for out-of-range index")
	}
}

func TestRenderStringNonStringValueIsSerialized(t *testing.T) {
	scope := Scope{"step": map[string]any{"count": float64(3)}}
	got, err := RenderString("total: {{step.count}}", scope)
	if err != nil {
		t.Fatalf("RenderString: %v", err)
	}
	if got != "total: 3" {
		t.Errorf("RenderString() = %q, want %q", got, "total: 3")
	}
}
