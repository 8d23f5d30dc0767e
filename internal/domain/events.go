package domain

// Names of the bridge-to-UI push channels. Message deliveries use the
// channel identifier itself as the event name.
const (
	EventServerCreate = "server-create"
	EventServerDelete = "server-delete"
	EventServerUpdate = "server-update"
	EventWindowOpen   = "window-open"
	EventWindowClose  = "window-close"
	EventStateChanged = "state-changed"
	EventHistoryError = "history-error"
)

// Names of the UI-to-bridge request channels. Any other method name is a
// channel identifier.
const (
	MethodActivateChannel = "activateChannel"
	MethodToken           = "token"
	MethodState           = "state"
	MethodHealth          = "health"
)

// Window kinds the bridge asks the UI shell to show.
const (
	WindowMain       = "main"
	WindowCredential = "credential"
)

// HistoryError is the payload of a history-error event.
type HistoryError struct {
	Channel   string `json:"channel"`
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}

// WindowSignal is the payload of window-open and window-close events.
type WindowSignal struct {
	Window string `json:"window"`
}
