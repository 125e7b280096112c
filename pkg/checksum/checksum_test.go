package checksum

import (
	"encoding/json"
	"testing"
)

func TestSum_KeyOrderInvariant(t *testing.T) {
	a := json.RawMessage(`{"name":"SKU-1","price":42,"tags":["a","b"]}`)
	b := json.RawMessage(`{"tags":["a","b"],"price":42,"name":"SKU-1"}`)

	sumA, err := Sum(a)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	sumB, err := Sum(b)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if sumA != sumB {
		t.Errorf("expected identical digests for reordered keys, got %s and %s", sumA, sumB)
	}
}

func TestSum_WhitespaceInvariant(t *testing.T) {
	a := json.RawMessage(`{"qty":3}`)
	b := json.RawMessage("{\n  \"qty\": 3\n}")

	sumA, _ := Sum(a)
	sumB, _ := Sum(b)

	if sumA != sumB {
		t.Errorf("expected whitespace not to change the digest")
	}
}

func TestSum_EmptyPayload(t *testing.T) {
	sumNil, err := Sum(nil)
	if err != nil {
		t.Fatalf("expected no error for nil payload, got %v", err)
	}

	sumNull, err := Sum(json.RawMessage("null"))
	if err != nil {
		t.Fatalf("expected no error for null payload, got %v", err)
	}

	if sumNil != sumNull {
		t.Errorf("expected nil payload to hash like the null literal")
	}
}

func TestSum_InvalidJSON(t *testing.T) {
	if _, err := Sum(json.RawMessage(`{"broken`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestVerify_DetectsCorruption(t *testing.T) {
	payload := json.RawMessage(`{"name":"SKU-1","qty":5}`)
	sum, err := Sum(payload)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if !Verify(payload, sum) {
		t.Error("expected intact payload to verify")
	}

	corrupted := json.RawMessage(`{"name":"SKU-1","qty":6}`)
	if Verify(corrupted, sum) {
		t.Error("expected corrupted payload to fail verification")
	}

	if Verify(json.RawMessage(`{"broken`), sum) {
		t.Error("expected malformed payload to fail verification")
	}
}
