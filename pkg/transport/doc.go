// Package transport holds the pieces shared by the bus transports in its
// sub-packages: the Executor used to hand received payloads to a scheduler,
// listener bookkeeping, and the JSON frame codec used by the network ports.
//
// Sub-packages:
//
//   - memory: two connected in-process ports
//   - ws: a WebSocket port (gorilla/websocket)
//   - redis: a Redis pub/sub port (go-redis)
//
// Every port implements both bus.Target and bus.EventTarget.
package transport
