// Package model defines shared data types used across the depth book replica.
//
// Conventions:
//   - Prices and quantities: float64 decoded from the exchange's decimal strings
//   - Update IDs: uint64 exchange sequence bounds (U = first, u = final)
//   - Event times: int64 milliseconds since Unix epoch, as sent by the exchange
package model
