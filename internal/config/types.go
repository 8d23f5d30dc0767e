package config

// Config is the root configuration for cordbridge.
type Config struct {
	Connection ConnectionConfig `yaml:"connection,omitempty"`
	Gateway    GatewayConfig    `yaml:"gateway,omitempty"`
	UI         UIConfig         `yaml:"ui,omitempty"`
	Store      StoreConfig      `yaml:"store,omitempty"`
	Logging    LoggingConfig    `yaml:"logging,omitempty"`
	Hooks      HooksConfig      `yaml:"hooks,omitempty"`
}

// ConnectionConfig selects the remote chat service and how the bridge
// keeps its session alive.
type ConnectionConfig struct {
	Provider     string        `yaml:"provider,omitempty"` // "discord" | "irc"
	HistoryLimit int           `yaml:"historyLimit,omitempty"`
	Retry        RetryConfig   `yaml:"retry,omitempty"`
	Discord      DiscordConfig `yaml:"discord,omitempty"`
	IRC          *IRCConfig    `yaml:"irc,omitempty"`
}

// RetryConfig bounds automatic reconnection after a disconnect.
type RetryConfig struct {
	Ceiling    int    `yaml:"ceiling,omitempty"`
	DelayMs    int    `yaml:"delayMs,omitempty"`
	Policy     string `yaml:"policy,omitempty"` // "fixed" | "exponential"
	MaxDelayMs int    `yaml:"maxDelayMs,omitempty"`
}

// DiscordConfig defines Discord connection settings. The token itself lives
// in the credential store, never here.
type DiscordConfig struct {
	Bot *bool `yaml:"bot,omitempty"` // prefix the token with "Bot "; defaults to true
}

// IsBot reports whether the stored credential is a bot token.
func (d DiscordConfig) IsBot() bool {
	if d.Bot == nil {
		return true
	}
	return *d.Bot
}

// IRCConfig defines IRC connection settings. The stored credential is used
// as the server or SASL password.
type IRCConfig struct {
	Server   string   `yaml:"server"`
	Port     int      `yaml:"port,omitempty"`
	Nick     string   `yaml:"nick"`
	Channels []string `yaml:"channels"`
	UseTLS   bool     `yaml:"useTLS,omitempty"`
	SASL     bool     `yaml:"sasl,omitempty"`
	Backlog  int      `yaml:"backlog,omitempty"` // messages remembered per channel for history
}

// GatewayConfig controls the local WebSocket gateway the UI connects to.
type GatewayConfig struct {
	Port           int              `yaml:"port,omitempty"`
	Bind           string           `yaml:"bind,omitempty"` // "loopback" | "lan" | "custom"
	CustomBindHost string           `yaml:"customBindHost,omitempty"`
	Auth           GatewayAuth      `yaml:"auth,omitempty"`
	TLS            GatewayTLS       `yaml:"tls,omitempty"`
	ControlUI      GatewayControlUI `yaml:"controlUi,omitempty"`
}

// GatewayAuth configures gateway authentication.
type GatewayAuth struct {
	Mode     string `yaml:"mode,omitempty"` // "token" | "password"
	Token    string `yaml:"token,omitempty"`
	Password string `yaml:"password,omitempty"`
}

// GatewayTLS configures TLS for the gateway.
type GatewayTLS struct {
	Enabled  bool   `yaml:"enabled,omitempty"`
	CertPath string `yaml:"certPath,omitempty"`
	KeyPath  string `yaml:"keyPath,omitempty"`
}

// GatewayControlUI lists browser origins allowed to open the WebSocket.
type GatewayControlUI struct {
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty"`
}

// UIConfig controls how snapshots are rendered for the UI.
type UIConfig struct {
	TimestampFormat string `yaml:"timestampFormat,omitempty"` // Go time layout
	Timezone        string `yaml:"timezone,omitempty"`        // IANA name; empty means local
}

// StoreConfig selects the credential store.
type StoreConfig struct {
	Driver string `yaml:"driver,omitempty"` // "sqlite" | "memory"
	Seal   *bool  `yaml:"seal,omitempty"`   // encrypt the credential with age; defaults to true
}

// Sealed reports whether stored credentials are encrypted at rest.
func (s StoreConfig) Sealed() bool {
	if s.Seal == nil {
		return true
	}
	return *s.Seal
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File         string `yaml:"file,omitempty"`
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "compact" | "json"
}

// HooksConfig defines shell commands run on bridge events.
type HooksConfig struct {
	StateChanged    []HookEntry `yaml:"stateChanged,omitempty"`
	ServerCreated   []HookEntry `yaml:"serverCreated,omitempty"`
	ServerDeleted   []HookEntry `yaml:"serverDeleted,omitempty"`
	MessageReceived []HookEntry `yaml:"messageReceived,omitempty"`
	BridgeStart     []HookEntry `yaml:"bridgeStart,omitempty"`
	BridgeStop      []HookEntry `yaml:"bridgeStop,omitempty"`
}

// HookEntry defines a single hook action.
type HookEntry struct {
	Command string `yaml:"command"`
	Timeout int    `yaml:"timeout,omitempty"` // milliseconds
}
