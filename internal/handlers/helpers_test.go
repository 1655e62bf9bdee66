package handlers

import (
	"encoding/json"
	"testing"
)

func TestQuantityText(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"integer", `5`, "5", false},
		{"integral float", `5.0`, "5", false},
		{"exponent", `1e1`, "10", false},
		{"fraction kept for coercion", `2.5`, "2.5", false},
		{"negative", `-3`, "-3", false},
		{"string", `"12"`, "12", false},
		{"null", `null`, "", false},
		{"object", `{"n": 1}`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := quantityText(json.RawMessage(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("quantityText(%s) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("quantityText(%s) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
