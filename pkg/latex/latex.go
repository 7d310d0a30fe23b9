// Package latex rewrites informal math notation produced by chat models into
// $$-delimited LaTeX that the web client renders.
//
// Format is cosmetic and best-effort: it is a chain of regular expressions, not
// a parser. Fenced code blocks are never touched, math that is already
// wrapped in $$ is set aside before any rule runs, and every rule runs to a
// fixpoint, so applying Format twice gives the same result as applying it once.
//
// StreamFormatter applies the same rules to text that arrives in pieces and
// keeps track of fences opened in an earlier piece.
package latex

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

const (
	codeTag = "\x00C"
	mathTag = "\x00M"
	tagEnd  = "\x00"
)

var (
	fencedCodeRe   = regexp.MustCompile("(?s)```.*?```")
	displayMathRe  = regexp.MustCompile(`(?s)\$\$.+?\$\$`)
	placeholderRe  = regexp.MustCompile("\x00([CM])(\\d+)\x00")
	inlineDollarRe = regexp.MustCompile(`\$([^\s$](?:[^$\n]*[^\s$])?)\$`)
)

type rule struct {
	name string
	re   *regexp.Regexp
	repl func(m []string) string
}

var superscripts = map[rune]rune{
	'⁰': '0', '¹': '1', '²': '2', '³': '3', '⁴': '4',
	'⁵': '5', '⁶': '6', '⁷': '7', '⁸': '8', '⁹': '9',
}

var vulgarFractions = map[string]string{
	"½": `\frac{1}{2}`, "⅓": `\frac{1}{3}`, "⅔": `\frac{2}{3}`,
	"¼": `\frac{1}{4}`, "¾": `\frac{3}{4}`, "⅕": `\frac{1}{5}`,
	"⅛": `\frac{1}{8}`,
}

// rules run in order. Each rule's output is wrapped in $$ and set aside
// before the next rule runs, so a later rule never rewrites inside an
// earlier one.
var rules = []rule{
	{
		// Σ(i=1 to n) x_i: the bounds form must come before the bare glyph.
		name: "sum with bounds",
		re:   regexp.MustCompile(`[Σ∑]\s*\(\s*([a-zA-Z])\s*=\s*(\w+)\s+to\s+(\w+)\s*\)\s*([^\s,;]+)`),
		repl: func(m []string) string {
			return fmt.Sprintf(`$$\sum_{%s=%s}^{%s} %s$$`, m[1], m[2], m[3], m[4])
		},
	},
	{
		name: "bare sum",
		re:   regexp.MustCompile(`[Σ∑]`),
		repl: func([]string) string { return `$$\sum$$` },
	},
	{
		// ∫_a^b f dx: bounds are single words, the integrand has no spaces.
		name: "integral with bounds",
		re:   regexp.MustCompile(`∫_(\w+)\^(\w+)\s*([^\s$]+?)\s*d([a-z])\b`),
		repl: func(m []string) string {
			return fmt.Sprintf(`$$\int_{%s}^{%s} %s \, d%s$$`, m[1], m[2], m[3], m[4])
		},
	},
	{
		name: "bare integral",
		re:   regexp.MustCompile(`∫`),
		repl: func([]string) string { return `$$\int$$` },
	},
	{
		// x² or 10³: the base is the word directly before the glyphs.
		name: "superscript digits",
		re:   regexp.MustCompile(`([A-Za-z0-9]+)([⁰¹²³⁴⁵⁶⁷⁸⁹]+)`),
		repl: func(m []string) string {
			var exp strings.Builder
			for _, r := range m[2] {
				exp.WriteRune(superscripts[r])
			}
			return fmt.Sprintf(`$$%s^{%s}$$`, m[1], exp.String())
		},
	},
	{
		name: "vulgar fraction",
		re:   regexp.MustCompile(`[½⅓⅔¼¾⅕⅛]`),
		repl: func(m []string) string { return "$$" + vulgarFractions[m[0]] + "$$" },
	},
	{
		// 3/4 standing alone. Dates (1/2/2024) and paths are excluded because
		// the neighbours must be whitespace, brackets or punctuation.
		name: "numeric fraction",
		re:   regexp.MustCompile(`(^|[\s(])(\d{1,3})/(\d{1,3})([\s).,;:!?]|$)`),
		repl: func(m []string) string {
			return fmt.Sprintf(`%s$$\frac{%s}{%s}$$%s`, m[1], m[2], m[3], m[4])
		},
	},
}

// maxRulePasses bounds the fixpoint loop in apply.
const maxRulePasses = 8

// apply runs r until the text stops changing. A boundary character consumed
// by one match can be the boundary of the next (1/2 3/4), so a single pass
// may leave neighbours behind.
func (r rule) apply(text string, math *stash) string {
	for range maxRulePasses {
		next := r.re.ReplaceAllStringFunc(text, func(s string) string {
			return r.repl(r.re.FindStringSubmatch(s))
		})
		next = math.protect(displayMathRe, next)
		if next == text {
			break
		}
		text = next
	}
	return text
}

type stash struct {
	tag   string
	items []string
}

func (s *stash) put(text string) string {
	s.items = append(s.items, text)
	return s.tag + strconv.Itoa(len(s.items)-1) + tagEnd
}

func (s *stash) protect(re *regexp.Regexp, text string) string {
	return re.ReplaceAllStringFunc(text, s.put)
}

// Format converts Unicode math glyphs and single-$ inline math to $$-delimited
// LaTeX. Inputs with adjacent or overlapping patterns may still come out
// malformed; callers must treat the result as display text only.
func Format(text string) string {
	if text == "" {
		return text
	}

	code := &stash{tag: codeTag}
	math := &stash{tag: mathTag}

	text = code.protect(fencedCodeRe, text)
	text = math.protect(displayMathRe, text)

	for _, r := range rules {
		text = r.apply(text, math)
	}

	text = inlineDollarRe.ReplaceAllString(text, `$$$$${1}$$$$`)
	text = math.protect(displayMathRe, text)

	return restore(text, code, math)
}

// restore expands placeholders until none are left: a rule's output can
// capture text that was already set aside.
func restore(text string, code, math *stash) string {
	for i := 0; i < 8 && strings.Contains(text, tagEnd); i++ {
		text = placeholderRe.ReplaceAllStringFunc(text, func(s string) string {
			m := placeholderRe.FindStringSubmatch(s)
			idx, err := strconv.Atoi(m[2])
			if err != nil {
				return s
			}
			items := lo.Ternary(m[1] == "M", math.items, code.items)
			if idx >= len(items) {
				return s
			}
			return items[idx]
		})
	}
	return text
}
