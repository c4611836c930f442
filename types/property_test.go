package types

import (
	"encoding/json"
	"testing"
)

func TestPatchDistinguishesAbsentFromNull(t *testing.T) {
	var patch PropertyPatch
	if err := json.Unmarshal([]byte(`{"pincode":"411045","address":null}`), &patch); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !patch.Pincode.Set || patch.Pincode.Value == nil || *patch.Pincode.Value != "411045" {
		t.Fatalf("expected pincode to be set, got %+v", patch.Pincode)
	}
	if !patch.Address.Set || patch.Address.Value != nil {
		t.Fatalf("expected address to be cleared, got %+v", patch.Address)
	}
	if patch.ContactPhone.Set {
		t.Fatalf("expected contactPhone absent, got %+v", patch.ContactPhone)
	}

	pincode, address := "411001", "Old road"
	p := patch.Apply(Property{Pincode: &pincode, Address: &address})
	if p.Pincode == nil || *p.Pincode != "411045" || p.Address != nil {
		t.Fatalf("unexpected merge pincode=%v address=%v", p.Pincode, p.Address)
	}
}

func TestPatchRejectsMistypedOptional(t *testing.T) {
	var patch PropertyPatch
	if err := json.Unmarshal([]byte(`{"latitude":"north"}`), &patch); err == nil {
		t.Fatal("expected a type error")
	}
}
