package gateway

import "encoding/json"

// ProtocolVersion is the only wire version this gateway speaks.
const ProtocolVersion = 1

// Frame kinds.
const (
	FrameTypeRequest  = "req"
	FrameTypeResponse = "res"
	FrameTypeEvent    = "event"
)

// Handshake names. Everything after the handshake uses bridge methods
// and events from the domain package.
const (
	EventConnectChallenge = "connect.challenge"
	MethodConnect         = "connect"
)

// Error codes carried in ErrorShape.Code.
const (
	CodeProtocol       = "protocol_error"
	CodeInvalidParams  = "invalid_params"
	CodeUnauthorized   = "unauthorized"
	CodeMethodNotFound = "method_not_found"
	CodeNotConnected   = "not_connected"
	CodeBridge         = "bridge_error"
	CodeUnavailable    = "unavailable"
)

// Frame is one JSON text message on the socket. Type decides which of
// the other fields are meaningful:
//
//	req    ID, Method, Params
//	res    ID, OK, Payload or Error
//	event  Event, Payload, Seq (0 outside the push stream)
type Frame struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	OK      *bool           `json:"ok,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Event   string          `json:"event,omitempty"`
	Seq     int64           `json:"seq,omitempty"`
	Error   *ErrorShape     `json:"error,omitempty"`
}

// ErrorShape is the error half of a failed response. Retryable marks
// failures the UI may repeat once the bridge reconnects.
type ErrorShape struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

// ConnectParams are the params of the connect request.
type ConnectParams struct {
	MinProtocol int          `json:"minProtocol"`
	MaxProtocol int          `json:"maxProtocol"`
	Client      ClientInfo   `json:"client"`
	Auth        *ConnectAuth `json:"auth,omitempty"`
}

// ClientMode values announced in ClientInfo.Mode. Only UI clients get
// pushes; CLI clients issue requests and leave.
const (
	ClientModeUI  = "ui"
	ClientModeCLI = "cli"
)

// ClientInfo identifies the connecting process.
type ClientInfo struct {
	ID       string `json:"id"`
	Version  string `json:"version"`
	Platform string `json:"platform"`
	Mode     string `json:"mode"`
}

func (i ClientInfo) wantsPushes() bool { return i.Mode != ClientModeCLI }

// ConnectAuth carries credentials in the connect request.
type ConnectAuth struct {
	Token    string `json:"token,omitempty"`
	Password string `json:"password,omitempty"`
}

// HelloOK is the payload of a successful connect response.
type HelloOK struct {
	Protocol   int      `json:"protocol"`
	ConnID     string   `json:"connId"`
	Version    string   `json:"version"`
	Commit     string   `json:"commit,omitempty"`
	Methods    []string `json:"methods"`
	Events     []string `json:"events"`
	MaxPayload int      `json:"maxPayload"`
}

func encode(v any) (json.RawMessage, error) {
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(v)
}

func requestFrame(id, method string, params any) (Frame, error) {
	raw, err := encode(params)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: FrameTypeRequest, ID: id, Method: method, Params: raw}, nil
}

func resultFrame(id string, payload any) (Frame, error) {
	raw, err := encode(payload)
	if err != nil {
		return Frame{}, err
	}
	ok := true
	return Frame{Type: FrameTypeResponse, ID: id, OK: &ok, Payload: raw}, nil
}

func failureFrame(id string, shape ErrorShape) Frame {
	ok := false
	return Frame{Type: FrameTypeResponse, ID: id, OK: &ok, Error: &shape}
}

func eventFrame(event string, payload any, seq int64) (Frame, error) {
	raw, err := encode(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: FrameTypeEvent, Event: event, Payload: raw, Seq: seq}, nil
}

// failed reports whether f is a response carrying an error, normalising
// a missing error body to a generic bridge failure.
func (f Frame) failed() (ErrorShape, bool) {
	if f.OK != nil && *f.OK {
		return ErrorShape{}, false
	}
	if f.Error != nil {
		return *f.Error, true
	}
	return ErrorShape{Code: CodeBridge, Message: "request failed"}, true
}
