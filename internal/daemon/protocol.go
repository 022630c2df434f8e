package daemon

// Actions a client may request.
const (
	ActionExplain  = "explain"
	ActionPing     = "ping"
	ActionStats    = "stats"
	ActionShutdown = "shutdown"
)

// Response types the daemon emits.
const (
	TypeToken       = "token"
	TypeComplete    = "complete"
	TypeError       = "error"
	TypePong        = "pong"
	TypeStats       = "stats"
	TypeShutdownAck = "shutdown_ack"
)

// Request is one client message. ID is echoed back on every response so a
// client can match replies.
type Request struct {
	ID      string `json:"id"`
	Action  string `json:"action"`
	Input   string `json:"input,omitempty"`
	Context string `json:"context,omitempty"`
	Stream  bool   `json:"stream,omitempty"`
}

// Response is one daemon message. For streamed explanations the daemon
// sends any number of token responses followed by a complete response
// carrying the full text.
type Response struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Content     string `json:"content,omitempty"`
	Explanation string `json:"explanation,omitempty"`
	Error       string `json:"error,omitempty"`
	Stats       *Stats `json:"stats,omitempty"`
}

// Stats is the daemon's self-report.
type Stats struct {
	PID            int    `json:"pid"`
	UptimeSeconds  int64  `json:"uptime_seconds"`
	RequestsServed uint64 `json:"requests_served"`
	AvgGenerateMs  int64  `json:"avg_generate_ms"`
	ModelPath      string `json:"model_path,omitempty"`
	IdleTimeoutSec int64  `json:"idle_timeout_seconds"`
}
