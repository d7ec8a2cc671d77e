package model

import (
	"errors"
	"strconv"
	"strings"
	"testing"
)

func TestBookTop_Crossed(t *testing.T) {
	tests := []struct {
		name string
		top  BookTop
		want bool
	}{
		{"empty book", BookTop{}, false},
		{"bid only", BookTop{BestBid: 100, HasBid: true}, false},
		{"ask only", BookTop{BestAsk: 100, HasAsk: true}, false},
		{"normal spread", BookTop{BestBid: 99, BestAsk: 100, HasBid: true, HasAsk: true}, false},
		{"locked", BookTop{BestBid: 100, BestAsk: 100, HasBid: true, HasAsk: true}, true},
		{"crossed", BookTop{BestBid: 101, BestAsk: 100, HasBid: true, HasAsk: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.top.Crossed(); got != tt.want {
				t.Errorf("Crossed() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseError(t *testing.T) {
	t.Run("with cause", func(t *testing.T) {
		_, cause := strconv.ParseFloat("abc", 64)
		err := &ParseError{Field: "bids[0].price", Value: "abc", Err: cause}

		if !strings.Contains(err.Error(), "bids[0].price") {
			t.Errorf("Error() = %q, should name the field", err.Error())
		}
		if !errors.Is(err, cause) {
			t.Error("errors.Is should match the wrapped cause")
		}
	})

	t.Run("without cause", func(t *testing.T) {
		err := &ParseError{Field: "U", Value: "12"}
		want := `parse U "12"`
		if err.Error() != want {
			t.Errorf("Error() = %q, want %q", err.Error(), want)
		}
		if err.Unwrap() != nil {
			t.Error("Unwrap() should be nil")
		}
	})

	t.Run("errors.As", func(t *testing.T) {
		var wrapped error = &ParseError{Field: "asks[1].qty", Value: "x"}
		wrapped = errors.Join(errors.New("decode depth update"), wrapped)

		var pe *ParseError
		if !errors.As(wrapped, &pe) {
			t.Fatal("errors.As should find *ParseError")
		}
		if pe.Field != "asks[1].qty" {
			t.Errorf("Field = %q, want %q", pe.Field, "asks[1].qty")
		}
	})
}
