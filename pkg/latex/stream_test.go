package latex

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func formatPieces(pieces ...string) string {
	f := NewStreamFormatter()
	var out strings.Builder
	for _, p := range pieces {
		out.WriteString(f.Write(p))
	}
	out.WriteString(f.Flush())
	return out.String()
}

func TestStreamFormatter(t *testing.T) {
	tests := []struct {
		name     string
		pieces   []string
		expected string
	}{
		{
			"code block split over pieces",
			[]string{"```go\n", "x := 3/4 + y²\n", "```"},
			"```go\nx := 3/4 + y²\n```",
		},
		{
			"math after the fence closes",
			[]string{"```\n", "a := $b$\n", "```\n", "so x² holds"},
			"```\na := $b$\n```\nso $$x^{2}$$ holds",
		},
		{
			"fence marker split over pieces",
			[]string{"see x²\n`", "``py\nprint(½)\n``", "`\ndone ½"},
			"see $$x^{2}$$\n```py\nprint(½)\n```\ndone $$\\frac{1}{2}$$",
		},
		{
			"one token at a time",
			[]string{"`", "`", "`", "\n", "Σ", "\n", "`", "`", "`", " Σ"},
			"```\nΣ\n``` $$\\sum$$",
		},
		{
			"inline code backticks are released",
			[]string{"run `go test`", " now"},
			"run `go test` now",
		},
		{
			"unclosed fence stays verbatim",
			[]string{"```\n", "x²"},
			"```\nx²",
		},
		{
			"plain pieces",
			[]string{"take 3/4 ", "of it"},
			`take $$\frac{3}{4}$$ of it`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, formatPieces(tt.pieces...))
		})
	}
}

func TestStreamFormatterHoldsBackPartialFence(t *testing.T) {
	f := NewStreamFormatter()

	require.Equal(t, "code:\n", f.Write("code:\n``"))
	require.False(t, f.InFence())

	require.Equal(t, "```\n1/2", f.Write("`\n1/2"))
	require.True(t, f.InFence())

	require.Equal(t, "", f.Flush())
}

func TestStreamFormatterMatchesFormatForWholeText(t *testing.T) {
	inputs := []string{
		"x² + y² = z²",
		"```\nx² and $a$ and 1/2\n```",
		"x² then\n```go\nfmt.Println(\"½\")\n```\nthen $y$",
	}

	for _, in := range inputs {
		require.Equal(t, Format(in), formatPieces(in), "input %q", in)
	}
}
