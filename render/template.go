package render

import (
	"bytes"
	"regexp"
	"strings"
	"text/template"
)

// Word splits typed text over several runs, so an action such as
// {{.customer_name}} may arrive as "{{" in one <w:t> and ".customer_name}}"
// in the next. Prepare rewrites a WordprocessingML part into a valid
// text/template source:
//
//   - tags inside an action are dropped and XML entities decoded;
//   - a table row or paragraph whose only text is one control action
//     ({{range}}, {{if}}, {{else}}, {{end}}, ...) is replaced by that action,
//     so loops repeat whole rows and paragraphs;
//   - value actions get a trailing "| xml" so substituted text is escaped.
var (
	actionRe    = regexp.MustCompile(`(?s)\{\{.*?\}\}`)
	tagRe       = regexp.MustCompile(`<[^>]*>`)
	rowRe       = regexp.MustCompile(`(?s)<w:tr(?:\s[^>]*[^/>])?>.*?</w:tr>`)
	paragraphRe = regexp.MustCompile(`(?s)<w:p(?:\s[^>]*[^/>])?>.*?</w:p>`)
	declRe      = regexp.MustCompile(`^\$\w*\s*:?=`)
)

var entityReplacer = strings.NewReplacer(
	"&quot;", `"`, "&#34;", `"`, "&apos;", "'", "&#39;", "'", "&lt;", "<", "&gt;", ">", "&amp;", "&",
	"“", `"`, "”", `"`, "‘", "'", "’", "'",
)

var controlWords = map[string]bool{
	"range": true, "if": true, "else": true, "end": true, "with": true,
	"define": true, "template": true, "block": true, "break": true, "continue": true,
}

// Prepare converts a WordprocessingML part into template source.
func Prepare(part string) string {
	s := mergeActions(part)
	s = collapseControl(rowRe, s)
	s = collapseControl(paragraphRe, s)
	return escapeActions(s)
}

// mergeActions finds actions in the character data of part, ignoring the
// markup between characters, and rewrites each one as plain text.
func mergeActions(part string) string {
	text := make([]byte, 0, len(part)/2)
	pos := make([]int, 0, len(part)/2)
	inTag := false
	for i := 0; i < len(part); i++ {
		c := part[i]
		switch {
		case c == '<':
			inTag = true
		case c == '>' && inTag:
			inTag = false
		case !inTag:
			text = append(text, c)
			pos = append(pos, i)
		}
	}

	matches := actionRe.FindAllIndex(text, -1)
	if len(matches) == 0 {
		return part
	}
	var sb strings.Builder
	sb.Grow(len(part))
	last := 0
	for _, m := range matches {
		start, end := pos[m[0]], pos[m[1]-1]+1
		sb.WriteString(part[last:start])
		sb.WriteString(entityReplacer.Replace(tagRe.ReplaceAllString(part[start:end], "")))
		last = end
	}
	sb.WriteString(part[last:])
	return sb.String()
}

func collapseControl(re *regexp.Regexp, s string) string {
	return re.ReplaceAllStringFunc(s, func(block string) string {
		text := strings.TrimSpace(tagRe.ReplaceAllString(block, ""))
		loc := actionRe.FindStringIndex(text)
		if loc == nil || loc[0] != 0 || loc[1] != len(text) {
			return block
		}
		if !controlWords[firstWord(actionBody(text))] {
			return block
		}
		return text
	})
}

func escapeActions(s string) string {
	return actionRe.ReplaceAllStringFunc(s, func(action string) string {
		inner := action[2 : len(action)-2]
		left, right := "", ""
		if strings.HasPrefix(inner, "- ") {
			left, inner = "- ", inner[2:]
		}
		if strings.HasSuffix(inner, " -") {
			right, inner = " -", inner[:len(inner)-2]
		}
		body := strings.TrimSpace(inner)
		switch {
		case body == "",
			strings.HasPrefix(body, "/*"),
			controlWords[firstWord(body)],
			declRe.MatchString(body),
			strings.HasSuffix(body, "| xml"):
			return action
		}
		return "{{" + left + body + " | xml" + right + "}}"
	})
}

func actionBody(action string) string {
	body := strings.TrimSpace(action[2 : len(action)-2])
	body = strings.TrimPrefix(body, "- ")
	body = strings.TrimSuffix(body, " -")
	return strings.TrimSpace(body)
}

func firstWord(s string) string {
	if i := strings.IndexAny(s, " \t\n("); i >= 0 {
		return s[:i]
	}
	return s
}

// execute renders one prepared part. Parts without actions are returned
// unchanged.
func execute(tmplName, partName string, src []byte, data map[string]any) ([]byte, error) {
	prepared := Prepare(string(src))
	if !strings.Contains(prepared, "{{") {
		return src, nil
	}
	t, err := template.New(partName).Option("missingkey=error").Funcs(Funcs()).Parse(prepared)
	if err != nil {
		return nil, &Error{Kind: KindTemplate, Template: tmplName, Err: err}
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return nil, classify(tmplName, err)
	}
	return buf.Bytes(), nil
}
