package chat

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Message is a single entry in a thread.
type Message struct {
	ID        string         `json:"id"`
	Role      string         `json:"role"`
	Type      string         `json:"type"`
	Content   string         `json:"content"`
	CreatedAt time.Time      `json:"created_at"`
	ToolName  string         `json:"tool_name,omitempty"`
	ToolArgs  map[string]any `json:"tool_args,omitempty"`
	Meta      map[string]any `json:"meta,omitempty"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleError     = "error"
	RoleTool      = "tool"
)

const (
	// TypeText marks a plain text message.
	TypeText = "text"
	// TypeObject marks a structured payload message.
	TypeObject = "object"
	// TypeToolCall marks a tool invocation message.
	TypeToolCall = "tool_call"
)

func NewUserMessage(content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Type:      TypeText,
		Content:   strings.TrimSpace(content),
		CreatedAt: time.Now(),
	}
}

func NewAssistantMessage(content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      RoleAssistant,
		Type:      TypeText,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

func NewSystemMessage(content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      RoleSystem,
		Type:      TypeText,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

func NewErrorMessage(content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      RoleError,
		Type:      TypeText,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// NewObjectMessage wraps a structured payload as an assistant message.
func NewObjectMessage(payload map[string]any) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      RoleAssistant,
		Type:      TypeObject,
		CreatedAt: time.Now(),
		Meta:      payload,
	}
}

// NewToolCallMessage records a tool invocation by the assistant.
func NewToolCallMessage(toolName string, args map[string]any) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      RoleAssistant,
		Type:      TypeToolCall,
		CreatedAt: time.Now(),
		ToolName:  toolName,
		ToolArgs:  args,
	}
}

// NewToolResultMessage records the output of a tool invocation.
func NewToolResultMessage(toolName, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      RoleTool,
		Type:      TypeText,
		Content:   content,
		CreatedAt: time.Now(),
		ToolName:  toolName,
	}
}

func (m Message) IsUser() bool {
	return m.Role == RoleUser
}

func (m Message) IsAssistant() bool {
	return m.Role == RoleAssistant
}

func (m Message) IsSystem() bool {
	return m.Role == RoleSystem
}

func (m Message) IsError() bool {
	return m.Role == RoleError
}

func (m Message) IsTool() bool {
	return m.Role == RoleTool
}

// IsPlainText reports whether the message body is plain text rather than
// a structured payload or tool call.
func (m Message) IsPlainText() bool {
	return m.Type == TypeText
}

func (m Message) IsEmpty() bool {
	return m.Content == "" && len(m.ToolArgs) == 0 && len(m.Meta) == 0
}
