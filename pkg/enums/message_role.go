package enums

import "fmt"

// MessageRole maps to the message_role_enum enum in Postgres.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
)

var validMessageRoles = []MessageRole{
	MessageRoleUser,
	MessageRoleAssistant,
	MessageRoleSystem,
}

// IsValid reports whether the value matches the canonical message role enum.
func (r MessageRole) IsValid() bool {
	for _, candidate := range validMessageRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseMessageRole converts raw input into MessageRole.
func ParseMessageRole(value string) (MessageRole, error) {
	for _, candidate := range validMessageRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid message role %q", value)
}
