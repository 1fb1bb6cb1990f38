package bus

// Envelope is the unit exchanged over the transport.
type Envelope struct {
	Channel string `json:"channel"`
	Message any    `json:"message"`
}

// Payload is an ordered sequence of envelopes carried by one transport write.
// A Sink never writes an empty payload.
type Payload []Envelope

// MessageEvent is delivered by an EventTarget for every payload received.
type MessageEvent struct {
	Data Payload
}
