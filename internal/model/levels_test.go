package model

import (
	"errors"
	"testing"
)

func TestParseLevels(t *testing.T) {
	tests := []struct {
		name      string
		raw       [][]string
		want      []PriceLevel
		wantField string
	}{
		{
			name: "valid levels",
			raw:  [][]string{{"0.0024", "10"}, {"0.0025", "0.00000000"}},
			want: []PriceLevel{{Price: 0.0024, Quantity: 10}, {Price: 0.0025, Quantity: 0}},
		},
		{
			name: "empty",
			raw:  nil,
			want: []PriceLevel{},
		},
		{
			name:      "bad price",
			raw:       [][]string{{"1.0", "1"}, {"abc", "1"}},
			wantField: "bids[1].price",
		},
		{
			name:      "non-positive price",
			raw:       [][]string{{"0", "1"}},
			wantField: "bids[0].price",
		},
		{
			name:      "bad quantity",
			raw:       [][]string{{"100.5", "1e"}},
			wantField: "bids[0].qty",
		},
		{
			name:      "short pair",
			raw:       [][]string{{"100.5"}},
			wantField: "bids[0]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLevels("bids", tt.raw)
			if tt.wantField != "" {
				var pe *ParseError
				if !errors.As(err, &pe) {
					t.Fatalf("ParseLevels() error = %v, want *ParseError", err)
				}
				if pe.Field != tt.wantField {
					t.Errorf("Field = %q, want %q", pe.Field, tt.wantField)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseLevels() unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("level[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}
