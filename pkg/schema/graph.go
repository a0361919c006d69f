package schema

// NodeType enumerates the kinds of workflow nodes the builder can place.
type NodeType string

const (
	NodeTypeWallet  NodeType = "wallet"
	NodeTypeDEX     NodeType = "dex"
	NodeTypeNFT     NodeType = "nft"
	NodeTypeStaking NodeType = "staking"
	NodeTypeEmail   NodeType = "email"
)

// NodeTypes lists every valid node type in declaration order.
var NodeTypes = []NodeType{NodeTypeWallet, NodeTypeDEX, NodeTypeNFT, NodeTypeStaking, NodeTypeEmail}

// DefaultPosition is used when the model omits a node position.
var DefaultPosition = Position{X: 250, Y: 100}

// Position is a 2-D canvas coordinate.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a workflow graph node. Data holds the type-specific configuration.
type Node struct {
	ID       string         `json:"id"`
	Type     NodeType       `json:"type"`
	Position Position       `json:"position"`
	Data     map[string]any `json:"data"`
}

// Edge connects two nodes. Endpoints are not verified to exist.
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// LogLevel is the severity of a client-facing log line.
type LogLevel string

const (
	LogInfo    LogLevel = "info"
	LogSuccess LogLevel = "success"
	LogWarn    LogLevel = "warn"
	LogError   LogLevel = "error"
)

// LogEntry is a log line pushed to the client.
type LogEntry struct {
	ID        string   `json:"id"`
	Timestamp int64    `json:"timestamp"` // ms since epoch
	Level     LogLevel `json:"level"`
	Message   string   `json:"message"`
}
