// Package publisher emits sampled tops of book to Kafka.
//
// Each message is a JSON-encoded TopMessage keyed by symbol, so all
// samples for one symbol land on one partition in order. Prices and
// quantities are encoded as decimal strings.
package publisher
