// Package render turns chat transcripts into sanitized HTML.
package render

import (
	"bytes"
	"fmt"
	"html"

	"github.com/microcosm-cc/bluemonday"
	"github.com/russross/blackfriday"

	"github.com/dskvich/polychat/pkg/domain"
)

var policy = newPolicy()

func newPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).OnElements("code", "pre", "div", "span")
	return p
}

// Markdown converts markdown to HTML with scripts, handlers and unsafe URLs removed.
func Markdown(md string) string {
	unsafe := blackfriday.MarkdownCommon([]byte(md))
	return string(policy.SanitizeBytes(unsafe))
}

// Transcript renders a chat and its messages as an HTML fragment.
func Transcript(chat domain.Chat, messages []domain.ChatMessage) string {
	var b bytes.Buffer

	fmt.Fprintf(&b, "<article class=\"chat\">\n<h1>%s</h1>\n", html.EscapeString(chat.Title))
	for _, m := range messages {
		fmt.Fprintf(&b, "<section class=\"message %s\">\n<h2>%s</h2>\n", html.EscapeString(string(m.Role)), roleLabel(m.Role))
		b.WriteString(Markdown(m.Content))
		b.WriteString("</section>\n")
	}
	b.WriteString("</article>\n")

	return b.String()
}

func roleLabel(r domain.Role) string {
	switch r {
	case domain.RoleAssistant:
		return "Assistant"
	case domain.RoleSystem:
		return "System"
	default:
		return "User"
	}
}
