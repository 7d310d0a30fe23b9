package provider

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/dskvich/polychat/pkg/domain"
)

const placeholderGreeting = "Hello"

type formatStyle struct {
	assistantRole string
	// systemMessage puts the instructions into the message list when the persona allows it.
	systemMessage bool
	visionMarkers []string
}

// SystemPrompt builds the instruction text for a persona.
func SystemPrompt(p domain.Persona) string {
	name, role := strings.TrimSpace(p.Name), strings.TrimSpace(p.Role)

	var b strings.Builder
	switch {
	case name != "" && role != "":
		fmt.Fprintf(&b, "You are %s, %s.", name, role)
	case name != "":
		fmt.Fprintf(&b, "You are %s.", name)
	case role != "":
		fmt.Fprintf(&b, "You are %s.", role)
	}

	if instructions := strings.TrimSpace(p.Instructions); instructions != "" {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(instructions)
	}
	return b.String()
}

func formatMessages(in FormatInput, style formatStyle) FormattedRequest {
	history := lo.Filter(in.PreviousMessages, func(m domain.ChatMessage, _ int) bool {
		return m.Role != domain.RoleSystem && strings.TrimSpace(m.Content) != ""
	})

	messages := lo.Map(history, func(m domain.ChatMessage, _ int) FormattedMessage {
		role := lo.Ternary(m.Role == domain.RoleAssistant, style.assistantRole, string(domain.RoleUser))
		return FormattedMessage{Role: role, Content: m.Content}
	})

	if in.File != nil && in.File.Content != "" {
		messages = attachFile(messages, *in.File, style.supportsVision(in.Persona.ModelCodeName))
	}

	if len(messages) == 0 {
		messages = []FormattedMessage{{Role: string(domain.RoleUser), Content: placeholderGreeting}}
	}

	req := FormattedRequest{Messages: messages}

	system := SystemPrompt(in.Persona)
	if system == "" {
		return req
	}

	if style.systemMessage && in.Persona.Capabilities.SupportsSystemMessage {
		req.Messages = append([]FormattedMessage{{Role: string(domain.RoleSystem), Content: system}}, req.Messages...)
		return req
	}

	req.System = system
	return req
}

func attachFile(messages []FormattedMessage, file domain.File, vision bool) []FormattedMessage {
	isImage := strings.HasPrefix(file.Type, "image/")

	target := -1
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == string(domain.RoleUser) {
			target = i
			break
		}
	}

	if target == -1 {
		messages = append(messages, FormattedMessage{Role: string(domain.RoleUser)})
		target = len(messages) - 1
	}

	msg := &messages[target]
	switch {
	case isImage && vision:
		msg.Image = &ImageAttachment{
			MediaType: file.Type,
			Data:      stripDataURL(file.Content),
		}
		msg.Content = lo.Ternary(msg.Content == "", "Describe this image.", msg.Content)
	case isImage:
		msg.Content = joinBlocks(fmt.Sprintf("File: %s\n(image attachments are not supported by this model)", file.Name), msg.Content)
	default:
		msg.Content = joinBlocks(fileBlock(file), msg.Content)
	}
	return messages
}

func fileBlock(file domain.File) string {
	return fmt.Sprintf("File: %s\n```\n%s\n```", file.Name, strings.TrimRight(file.Content, "\n"))
}

func joinBlocks(block, text string) string {
	if strings.TrimSpace(text) == "" {
		return block
	}
	return block + "\n\n" + text
}

func stripDataURL(s string) string {
	if !strings.HasPrefix(s, "data:") {
		return s
	}
	if _, data, ok := strings.Cut(s, ","); ok {
		return data
	}
	return s
}

func (s formatStyle) supportsVision(model string) bool {
	model = strings.ToLower(model)
	return lo.ContainsBy(s.visionMarkers, func(marker string) bool {
		return strings.Contains(model, marker)
	})
}

// withInlineSystem folds the instructions into the first user turn for vendors that
// have no place for them.
func withInlineSystem(req FormattedRequest) []FormattedMessage {
	if req.System == "" {
		return req.Messages
	}

	messages := make([]FormattedMessage, len(req.Messages))
	copy(messages, req.Messages)

	for i := range messages {
		if messages[i].Role == string(domain.RoleUser) {
			messages[i].Content = req.System + "\n\n" + messages[i].Content
			return messages
		}
	}
	return append([]FormattedMessage{{Role: string(domain.RoleUser), Content: req.System}}, messages...)
}
