package llm

import (
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// Normalize converts heterogeneous message-like values (structs or decoded
// JSON maps) into the canonical ordered form. Missing fields are defaults,
// not errors: role falls back to user, content is stringified when it is not
// already a string. Normalize never fails.
func Normalize(raw []any) []Message {
	messages := make([]Message, 0, len(raw))
	for _, item := range raw {
		switch v := item.(type) {
		case Message:
			messages = append(messages, normalized(v.Role, v.Content))
		case map[string]any:
			role, _ := v["role"].(string)
			messages = append(messages, normalized(role, stringify(v["content"])))
		case map[string]string:
			messages = append(messages, normalized(v["role"], v["content"]))
		default:
			// A bare value is treated as user content
			messages = append(messages, normalized("", stringify(item)))
		}
	}
	return messages
}

func normalized(role, content string) Message {
	switch role {
	case openai.ChatMessageRoleSystem, openai.ChatMessageRoleUser, openai.ChatMessageRoleAssistant:
	default:
		role = openai.ChatMessageRoleUser
	}
	return Message{Role: role, Content: content}
}

func stringify(content any) string {
	switch v := content.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}
