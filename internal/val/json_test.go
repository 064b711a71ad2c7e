package val

import (
	"encoding/json"
	"testing"
)

func TestMarshalJSONRoundTripsPrimitives(t *testing.T) {
	cases := []Val{Null(), Bool(true), Number(42), Text("hi")}
	for _, in := range cases {
		b, err := json.Marshal(in)
		if err != nil {
			t.Fatalf("Marshal(%v): %v", in, err)
		}
		var out Val
		if err := json.Unmarshal(b, &out); err != nil {
			t.Fatalf("Unmarshal(%s): %v", b, err)
		}
		if eq, ok := Equal(in, out).AsBool(); !ok || !eq {
			t.Fatalf("round trip mismatch: %v -> %s -> %v", in, b, out)
		}
	}
}

func TestMarshalJSONRoundTripsArrayAndObject(t *testing.T) {
	arr := Array([]Val{Number(1), Text("x"), Bool(false)})
	obj := Object(map[string]Val{"a": Number(1), "b": Text("y")})

	for _, in := range []Val{arr, obj} {
		b, err := json.Marshal(in)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		var out Val
		if err := json.Unmarshal(b, &out); err != nil {
			t.Fatalf("Unmarshal(%s): %v", b, err)
		}
		if eq, ok := Equal(in, out).AsBool(); !ok || !eq {
			t.Fatalf("round trip mismatch: %v -> %s -> %v", in, b, out)
		}
	}
}

func TestMarshalJSONMasksSecret(t *testing.T) {
	v := Text("s3cr3t")
	v.Secret = true

	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		t.Fatalf("Unmarshal(%s): %v", b, err)
	}
	if s != SecretPlaceholder {
		t.Fatalf("expected placeholder, got %q", s)
	}
}

func TestUndefinedMarshalsToNull(t *testing.T) {
	b, err := json.Marshal(Undefined())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(b) != "null" {
		t.Fatalf("expected null, got %s", b)
	}
}

func TestUnmarshalJSONNullDecodesToNull(t *testing.T) {
	var v Val
	if err := json.Unmarshal([]byte("null"), &v); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if v.Kind != KindNull {
		t.Fatalf("expected KindNull, got %s", v.Kind)
	}
}
