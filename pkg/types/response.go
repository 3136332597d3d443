// Package types holds the wire envelopes every API response is wrapped in.
package types

// Envelope wraps successful payloads so clients always find their data
// under the same key.
type Envelope struct {
	Data any `json:"data"`
}

// ErrorInfo is the client-facing error body. Details is populated only for
// codes that whitelist structured context, such as validation issues or a
// stock shortfall.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope wraps ErrorInfo under a stable key, mirroring Envelope.
type ErrorEnvelope struct {
	Error ErrorInfo `json:"error"`
}
