package render

import (
	"archive/zip"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/hazyhaar/docmcp/ooxml"
)

var (
	rootFieldRe = regexp.MustCompile(`(?:^|[\s(|])\.([A-Za-z_]\w*)`)
	dollarRe    = regexp.MustCompile(`\$\.([A-Za-z_]\w*)`)
)

// ScanVariables lists the top-level context keys a template references:
// plain values and the collections of {{range}} loops. Fields read inside a
// range or with block belong to the element, not the context, and are not
// reported. The injected "now" and "today" are omitted.
func (r *Renderer) ScanVariables(name string) ([]string, error) {
	p, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}
	zr, err := zip.OpenReader(p)
	if err != nil {
		return nil, fmt.Errorf("render: open template: %w", err)
	}
	defer zr.Close()

	seen := map[string]bool{}
	for _, f := range zr.File {
		if !templatedParts.MatchString(f.Name) {
			continue
		}
		body, err := ooxml.ReadFile(f)
		if err != nil {
			return nil, err
		}
		scanActions(mergeActions(string(body)), seen)
	}
	delete(seen, "now")
	delete(seen, "today")

	vars := make([]string, 0, len(seen))
	for v := range seen {
		vars = append(vars, v)
	}
	sort.Strings(vars)
	return vars, nil
}

func scanActions(src string, seen map[string]bool) {
	// scoped[i] is true when block i rebinds dot (range/with).
	var scoped []bool
	depth := 0
	for _, action := range actionRe.FindAllString(src, -1) {
		body := actionBody(action)
		word := firstWord(body)

		for _, m := range dollarRe.FindAllStringSubmatch(body, -1) {
			seen[m[1]] = true
		}
		if depth == 0 && word != "end" {
			rest := body
			if controlWords[word] {
				rest = strings.TrimPrefix(body, word)
			}
			for _, m := range rootFieldRe.FindAllStringSubmatch(rest, -1) {
				seen[m[1]] = true
			}
		}

		switch word {
		case "range", "with":
			scoped = append(scoped, true)
			depth++
		case "if", "define", "block":
			scoped = append(scoped, false)
		case "end":
			if n := len(scoped); n > 0 {
				if scoped[n-1] {
					depth--
				}
				scoped = scoped[:n-1]
			}
		}
	}
}
