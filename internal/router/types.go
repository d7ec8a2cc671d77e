package router

import "encoding/json"

// RouterConfig holds configuration for the depth Router.
type RouterConfig struct {
	// Symbol is the only symbol whose updates are forwarded (case-insensitive).
	Symbol string
}

// RouterStats contains runtime statistics.
type RouterStats struct {
	MessagesReceived int64
	UpdatesRouted    int64
	ParseErrors      int64
	UnknownMessages  int64
	OtherSymbol      int64
	BufferFull       int64 // Updates dropped because the ring was full
	BufferLen        int
	BufferCap        int
}

// Wire types for JSON parsing

// streamEnvelope covers raw frames, combined-stream frames and command replies.
//
//	raw:      {"e":"depthUpdate","E":...,"s":"BTCUSDT","U":...,"u":...,"b":[...],"a":[...]}
//	combined: {"stream":"btcusdt@depth@100ms","data":{...raw...}}
//	reply:    {"result":null,"id":1}
type streamEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
	Event  string          `json:"e"`
	ID     *int64          `json:"id"`

	// Absorbs "E" so it is not folded onto "e" by the case-insensitive decoder.
	EventTime json.RawMessage `json:"E"`
}

// depthUpdateWire is the wire format for depthUpdate events.
type depthUpdateWire struct {
	Event         string     `json:"e"`
	EventTime     int64      `json:"E"`
	Symbol        string     `json:"s"`
	FirstUpdateID uint64     `json:"U"`
	FinalUpdateID uint64     `json:"u"`
	Bids          [][]string `json:"b"`
	Asks          [][]string `json:"a"`
}

const eventDepthUpdate = "depthUpdate"
