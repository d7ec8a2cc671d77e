// Package api provides the exchange REST client used to fetch depth snapshots.
//
// Endpoint:
//   - GET /api/v3/depth?symbol=BTCUSDT&limit=1000
//
// The response carries lastUpdateId (L) and string [price, qty] pairs.
// Client.FetchSnapshot decodes it into a model.Snapshot for the order book
// engine. Non-2xx responses surface as *APIError; 5xx and 429 are retried
// with jittered exponential backoff.
package api
