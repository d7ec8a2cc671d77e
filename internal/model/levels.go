package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var errShortLevel = errors.New("level needs [price, quantity]")

// ParseLevels decodes exchange [["price","qty"], ...] pairs. Prices must be
// positive; a zero quantity is kept since it marks a level removal.
func ParseLevels(field string, raw [][]string) ([]PriceLevel, error) {
	levels := make([]PriceLevel, 0, len(raw))
	for i, pair := range raw {
		if len(pair) < 2 {
			return nil, &ParseError{
				Field: fmt.Sprintf("%s[%d]", field, i),
				Value: strings.Join(pair, ","),
				Err:   errShortLevel,
			}
		}

		price, err := decimal.NewFromString(pair[0])
		if err != nil {
			return nil, &ParseError{Field: fmt.Sprintf("%s[%d].price", field, i), Value: pair[0], Err: err}
		}
		if !price.IsPositive() {
			return nil, &ParseError{Field: fmt.Sprintf("%s[%d].price", field, i), Value: pair[0]}
		}

		qty, err := decimal.NewFromString(pair[1])
		if err != nil {
			return nil, &ParseError{Field: fmt.Sprintf("%s[%d].qty", field, i), Value: pair[1], Err: err}
		}

		levels = append(levels, PriceLevel{
			Price:    price.InexactFloat64(),
			Quantity: qty.InexactFloat64(),
		})
	}
	return levels, nil
}
