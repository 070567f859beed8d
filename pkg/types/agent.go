package types

// AgentKind classifies how a coding agent is used.
type AgentKind string

const (
	AgentKindCLI    AgentKind = "cli"
	AgentKindVSCode AgentKind = "vscode"
	AgentKindHybrid AgentKind = "hybrid"
)

// Agent identifies one coding-assistant tool.
type Agent struct {
	Slug    string
	Name    string
	Version string // Optional
	Kind    AgentKind
}

// MessageRole is the closed role enum used by storage and the query surface.
// Connectors emit free-form role strings; ParseRole maps them here.
type MessageRole string

const (
	RoleUser   MessageRole = "user"
	RoleAgent  MessageRole = "agent"
	RoleTool   MessageRole = "tool"
	RoleSystem MessageRole = "system"
	RoleOther  MessageRole = "other"
)

// ParseRole maps a free-form role string from a connector to the closed enum.
// Unrecognized values map to RoleOther.
func ParseRole(role string) MessageRole {
	switch role {
	case "user", "human":
		return RoleUser
	case "assistant", "agent", "ai", "model":
		return RoleAgent
	case "tool", "tool_result", "function":
		return RoleTool
	case "system":
		return RoleSystem
	default:
		return RoleOther
	}
}
