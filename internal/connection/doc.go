// Package connection maintains the WebSocket diff-depth stream.
//
// A Client wraps one gorilla/websocket connection: it answers server pings,
// sends its own keepalive pings and reports a stale connection when neither
// side has been heard from within PingTimeout. A Stream owns successive
// Clients, redialing with exponential backoff after every disconnect and
// forwarding timestamped frames to a single output channel for the router.
package connection
