package common

import (
	"testing"

	"himawari-desktop/internal/apperr"
)

func TestParseMargins(t *testing.T) {
	tests := []struct {
		input   string
		want    Margins
		wantErr bool
	}{
		{input: "", want: Margins{}},
		{input: "5", want: Margins{Top: 5, Right: 5, Bottom: 5, Left: 5}},
		{input: "5,10", want: Margins{Top: 5, Right: 10, Bottom: 5, Left: 10}},
		{input: "5,10,15", want: Margins{Top: 5, Right: 10, Bottom: 15, Left: 5}},
		{input: "5,10,15,20", want: Margins{Top: 5, Right: 10, Bottom: 15, Left: 20}},
		{input: " 5 , 10 ", want: Margins{Top: 5, Right: 10, Bottom: 5, Left: 10}},
		{input: "5,10,15,20,25", wantErr: true},
		{input: "a", wantErr: true},
		{input: "5,x", wantErr: true},
		{input: "5,,15", wantErr: true},
		{input: "-1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseMargins(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseMargins(%q) = %+v, want error", tt.input, got)
				}
				if !apperr.IsKind(err, apperr.KindConfig) {
					t.Errorf("error kind = %v, want config", apperr.KindOf(err))
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMargins(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseMargins(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestMarginsStringRoundTrip(t *testing.T) {
	m := Margins{Top: 1, Right: 2, Bottom: 3, Left: 4}
	got, err := ParseMargins(m.String())
	if err != nil {
		t.Fatalf("ParseMargins(%q) error = %v", m.String(), err)
	}
	if got != m {
		t.Errorf("got %+v, want %+v", got, m)
	}
	if m.Horizontal() != 6 || m.Vertical() != 4 {
		t.Errorf("Horizontal/Vertical = %d/%d, want 6/4", m.Horizontal(), m.Vertical())
	}
}

func TestMarginsValidate(t *testing.T) {
	if err := (Margins{Top: 5, Left: 0}).Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	for _, m := range []Margins{{Top: -1}, {Right: -1}, {Bottom: -1}, {Left: -10}} {
		if err := m.Validate(); !apperr.IsKind(err, apperr.KindConfig) {
			t.Errorf("Validate(%+v) = %v, want config error", m, err)
		}
	}
}
