package lookup

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestIsValid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{"model true", `{"data":{"model":true,"data":{"id":"01000001"}}}`, true},
		{"model object", `{"data":{"model":{"x":1}}}`, true},
		{"model false", `{"data":{"model":false,"data":{"id":"01000001"}}}`, false},
		{"model null", `{"data":{"model":null}}`, false},
		{"model absent", `{"data":{"data":{"id":"01000001"}}}`, false},
		{"data absent", `{}`, false},
		{"data null", `{"data":null}`, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := Decode([]byte(tc.body))
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if got := IsValid(resp); got != tc.want {
				t.Errorf("IsValid = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestIsValid_NilResponse(t *testing.T) {
	if IsValid(nil) {
		t.Error("nil response must be invalid")
	}
}

func TestClassify(t *testing.T) {
	resp, _ := Decode([]byte(`{"data":{"model":true}}`))
	if o := Classify("k", resp, 1); o.Status() != StatusFound || !o.Found() {
		t.Errorf("expected found, got %s", o.Status())
	}
	if o := Classify("k", nil, 3); o.Status() != StatusNotFound || o.Attempts() != 3 {
		t.Errorf("expected not_found after 3 attempts, got %s/%d", o.Status(), o.Attempts())
	}
}

func TestDecode_FlexID(t *testing.T) {
	tests := []struct {
		body string
		want FlexString
	}{
		{`{"data":{"data":{"id":"01000001"}}}`, "01000001"},
		{`{"data":{"data":{"id":1000001}}}`, "1000001"},
		{`{"data":{"data":{"id":null}}}`, ""},
	}
	for _, tc := range tests {
		resp, err := Decode([]byte(tc.body))
		if err != nil {
			t.Fatalf("Decode(%s): %v", tc.body, err)
		}
		if got := CandidateOf(resp).ID; got != tc.want {
			t.Errorf("id = %q, want %q", got, tc.want)
		}
	}
}

func TestDecode_BOMAndGarbage(t *testing.T) {
	body := append([]byte{0xEF, 0xBB, 0xBF}, []byte(`{"data":{"model":true}}`)...)
	resp, err := Decode(body)
	if err != nil {
		t.Fatalf("Decode with BOM: %v", err)
	}
	if !IsValid(resp) {
		t.Error("expected valid response after BOM strip")
	}

	if _, err := Decode([]byte("<html>rate limited</html>")); err == nil {
		t.Error("expected error for non-JSON body")
	}
	_, err = Decode([]byte("{"))
	var syntaxErr *json.SyntaxError
	if !errors.As(err, &syntaxErr) {
		t.Errorf("expected *json.SyntaxError for truncated body, got %T", err)
	}
}
