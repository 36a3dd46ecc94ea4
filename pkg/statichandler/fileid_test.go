package statichandler

import "testing"

func TestComputeFileIDIsDeterministic(t *testing.T) {
	a := ComputeFileID("orders", "invoice.pdf", []byte("hello"))
	b := ComputeFileID("orders", "invoice.pdf", []byte("hello"))
	if a != b {
		t.Errorf("ComputeFileID is not deterministic: %q != %q", a, b)
	}
	if len(a) != fileIDLength {
		t.Errorf("len(id) = %d, want %d", len(a), fileIDLength)
	}
}

func TestComputeFileIDChangesWithContent(t *testing.T) {
	a := ComputeFileID("orders", "invoice.pdf", []byte("hello"))
	b := ComputeFileID("orders", "invoice.pdf", []byte("goodbye"))
	if a == b {
		t.Error("different content should produce different ids")
	}
}

func TestComputeFileIDChangesWithEndpointOrFilename(t *testing.T) {
	base := ComputeFileID("orders", "invoice.pdf", []byte("hello"))
	diffEndpoint := ComputeFileID("billing", "invoice.pdf", []byte("hello"))
	diffName := ComputeFileID("orders", "receipt.pdf", []byte("hello"))
	if base == diffEndpoint {
		t.Error("different endpoint should produce different id")
	}
	if base == diffName {
		t.Error("different filename should produce different id")
	}
}
