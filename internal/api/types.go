package api

// DepthSnapshotResponse from GET /api/v3/depth
type DepthSnapshotResponse struct {
	LastUpdateID uint64 `json:"lastUpdateId"`

	// Levels as [price, quantity] decimal strings
	Bids [][]string `json:"bids"`
	Asks [][]string `json:"asks"`
}

// errorResponse is the body of a non-2xx response.
type errorResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// Valid depth limits accepted by the snapshot endpoint.
var validDepthLimits = map[int]bool{
	5: true, 10: true, 20: true, 50: true, 100: true, 500: true, 1000: true, 5000: true,
}

// IsValidDepthLimit reports whether limit is accepted by the snapshot endpoint.
func IsValidDepthLimit(limit int) bool {
	return validDepthLimits[limit]
}
