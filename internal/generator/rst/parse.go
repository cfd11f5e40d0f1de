package rst

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// SyntaxError reports malformed markup.
type SyntaxError struct {
	Doc  string
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string { return fmt.Sprintf("%s:%d: %s", e.Doc, e.Line, e.Msg) }

// Label is an internal hyperlink target.
type Label struct {
	ID    string
	Title string
}

// Document is a parsed reStructuredText source.
type Document struct {
	Name     string // document name: path relative to the docs root without suffix
	Title    string // first section title
	Labels   map[string]Label
	Targets  map[string]string // named external hyperlink targets
	Toctrees []*Toctree
	Warnings []string
	Blocks   []Node

	implicit map[string]string // normalized section title -> id
	ids      map[string]int
}

type adornStyle struct {
	char     rune
	overline bool
}

type parser struct {
	doc     *Document
	styles  []adornStyle
	pending []string // labels waiting for the next block
}

var (
	bulletRe    = regexp.MustCompile(`^([-*+•])(?: +(.*))?$`)
	enumRe      = regexp.MustCompile(`^(\d+|#)([.)]) +(.*)$`)
	fieldRe     = regexp.MustCompile(`^:([^:` + "`" + `]+):(?: +(.*))?$`)
	targetRe    = regexp.MustCompile("^_(`[^`]+`|[^:]+):(?:\\s+(.*))?$")
	directiveRe = regexp.MustCompile(`^([A-Za-z0-9_:+-]+)::(?:\s+(.*))?$`)
	optionRe    = regexp.MustCompile(`^:([\w-]+):(?:\s+(.*))?$`)
	tocEntryRe  = regexp.MustCompile(`^(.*?)\s*<([^<>]+)>$`)
)

// Parse parses a document. name is used for error messages and relative reference resolution.
func Parse(name string, src []byte) (*Document, error) {
	text := strings.TrimPrefix(strings.ReplaceAll(string(src), "\r\n", "\n"), "\ufeff")
	lines := strings.Split(expandTabs(text), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " ")
	}

	d := &Document{
		Name:     name,
		Labels:   map[string]Label{},
		Targets:  map[string]string{},
		implicit: map[string]string{},
		ids:      map[string]int{},
	}
	p := &parser{doc: d}
	blocks, err := p.parseBlocks(lines, 1)
	if err != nil {
		return nil, err
	}
	d.Blocks = blocks
	return d, nil
}

func (p *parser) errorf(line int, format string, args ...any) error {
	return &SyntaxError{Doc: p.doc.Name, Line: line, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) warnf(line int, format string, args ...any) {
	p.doc.Warnings = append(p.doc.Warnings, fmt.Sprintf("%s:%d: %s", p.doc.Name, line, fmt.Sprintf(format, args...)))
}

// emit appends n and settles labels that were waiting for a block.
func (p *parser) emit(out []Node, n Node) []Node {
	if _, ok := n.(*Anchor); !ok {
		p.pending = nil
	}
	return append(out, n)
}

func (p *parser) parseBlocks(lines []string, base int) ([]Node, error) {
	var out []Node
	i := 0
	for i < len(lines) {
		l := lines[i]
		if isBlank(l) {
			i++
			continue
		}
		ln := base + i

		if indentOf(l) > 0 {
			block, end := collectIndented(lines, i)
			body, err := p.parseBlocks(block, ln)
			if err != nil {
				return nil, err
			}
			out = p.emit(out, &Quote{Body: body})
			i = end
			continue
		}

		if ch, ok := adornment(l); ok {
			next := i + 1
			if next >= len(lines) || isBlank(lines[next]) {
				if utf8.RuneCountInString(l) >= 4 {
					out = p.emit(out, &Transition{})
					i = next
					continue
				}
			} else if _, nextIsAdorn := adornment(lines[next]); !nextIsAdorn {
				if i+2 >= len(lines) {
					return nil, p.errorf(ln, "missing matching underline for section title overline")
				}
				under, uok := adornment(lines[i+2])
				if !uok {
					return nil, p.errorf(ln, "missing matching underline for section title overline")
				}
				if under != ch || len(lines[i+2]) != len(l) {
					return nil, p.errorf(ln, "title overline & underline mismatch")
				}
				title := strings.TrimSpace(lines[next])
				if utf8.RuneCountInString(title) > utf8.RuneCountInString(l) {
					return nil, p.errorf(ln, "title overline too short")
				}
				out = p.emit(out, p.section(title, adornStyle{char: ch, overline: true}))
				i += 3
				continue
			}
		}

		if l == ".." || strings.HasPrefix(l, ".. ") {
			block, end := collectIndented(lines, i+1)
			nodes, err := p.explicit(strings.TrimSpace(l[2:]), block, ln)
			if err != nil {
				return nil, err
			}
			for _, n := range nodes {
				out = p.emit(out, n)
			}
			i = end
			continue
		}

		if l == "::" {
			block, end := collectIndented(lines, i+1)
			if len(block) > 0 {
				out = p.emit(out, &Literal{Text: strings.Join(block, "\n")})
			}
			i = end
			continue
		}

		if strings.HasPrefix(l, ">>>") {
			j := i
			for j < len(lines) && !isBlank(lines[j]) {
				j++
			}
			out = p.emit(out, &Literal{Text: strings.Join(lines[i:j], "\n"), Language: "pycon"})
			i = j
			continue
		}

		if m := bulletRe.FindStringSubmatch(l); m != nil {
			list, end, err := p.parseList(lines, i, base, func(s string) (string, bool) {
				mm := bulletRe.FindStringSubmatch(s)
				if mm == nil || mm[1] != m[1] {
					return "", false
				}
				return mm[2], true
			})
			if err != nil {
				return nil, err
			}
			out = p.emit(out, list)
			i = end
			continue
		}

		if m := enumRe.FindStringSubmatch(l); m != nil {
			list, end, err := p.parseList(lines, i, base, func(s string) (string, bool) {
				mm := enumRe.FindStringSubmatch(s)
				if mm == nil || mm[2] != m[2] {
					return "", false
				}
				return mm[3], true
			})
			if err != nil {
				return nil, err
			}
			list.Ordered = true
			out = p.emit(out, list)
			i = end
			continue
		}

		if fieldRe.MatchString(l) {
			fl, end, err := p.parseFieldList(lines, i, base)
			if err != nil {
				return nil, err
			}
			out = p.emit(out, fl)
			i = end
			continue
		}

		if i+1 < len(lines) {
			if _, ok := adornment(lines[i+1]); ok {
				title := strings.TrimSpace(l)
				ulen := utf8.RuneCountInString(lines[i+1])
				switch {
				case ulen >= utf8.RuneCountInString(title):
					ch, _ := adornment(lines[i+1])
					out = p.emit(out, p.section(title, adornStyle{char: ch}))
					i += 2
					continue
				case ulen >= 4:
					return nil, p.errorf(ln, "title underline too short")
				}
			}
			if !isBlank(lines[i+1]) && indentOf(lines[i+1]) > 0 {
				dl, end, err := p.parseDefList(lines, i, base)
				if err != nil {
					return nil, err
				}
				out = p.emit(out, dl)
				i = end
				continue
			}
		}

		j := i
		for j < len(lines) && !isBlank(lines[j]) && indentOf(lines[j]) == 0 {
			if j > i && j+1 < len(lines) {
				if _, ok := adornment(lines[j+1]); ok && utf8.RuneCountInString(lines[j+1]) >= utf8.RuneCountInString(lines[j]) {
					return nil, p.errorf(base+j, "unexpected section title")
				}
			}
			j++
		}
		text := strings.Join(lines[i:j], "\n")
		i = j
		if !strings.HasSuffix(text, "::") {
			out = p.emit(out, &Paragraph{Text: text})
			continue
		}
		if strings.HasSuffix(text, " ::") {
			text = strings.TrimSuffix(text, " ::")
		} else {
			text = strings.TrimSuffix(text, ":")
		}
		out = p.emit(out, &Paragraph{Text: text})
		k := i
		for k < len(lines) && isBlank(lines[k]) {
			k++
		}
		if k < len(lines) && indentOf(lines[k]) > 0 {
			block, end := collectIndented(lines, k)
			out = p.emit(out, &Literal{Text: strings.Join(block, "\n")})
			i = end
		}
	}
	return out, nil
}

func (p *parser) section(title string, style adornStyle) *Section {
	level := -1
	for idx, s := range p.styles {
		if s == style {
			level = idx + 1
			break
		}
	}
	if level < 0 {
		p.styles = append(p.styles, style)
		level = len(p.styles)
	}
	id := p.uniqueID(Slugify(title))
	s := &Section{Level: level, Title: title, ID: id}
	if p.doc.Title == "" {
		p.doc.Title = title
	}
	if _, seen := p.doc.implicit[normalizeName(title)]; !seen {
		p.doc.implicit[normalizeName(title)] = id
	}
	for _, label := range p.pending {
		p.doc.Labels[label] = Label{ID: id, Title: title}
	}
	p.pending = nil
	return s
}

func (p *parser) uniqueID(base string) string {
	n := p.doc.ids[base]
	p.doc.ids[base] = n + 1
	if n == 0 {
		return base
	}
	return base + "-" + strconv.Itoa(n)
}

type markerFunc func(line string) (content string, ok bool)

func (p *parser) parseList(lines []string, i, base int, marker markerFunc) (*List, int, error) {
	list := &List{}
	for i < len(lines) {
		first, ok := marker(lines[i])
		if !ok {
			break
		}
		block, end := collectIndented(lines, i+1)
		body, err := p.parseBlocks(append([]string{first}, block...), base+i)
		if err != nil {
			return nil, 0, err
		}
		list.Items = append(list.Items, body)
		i = end
		k := i
		for k < len(lines) && isBlank(lines[k]) {
			k++
		}
		if k >= len(lines) {
			i = k
			break
		}
		if _, ok := marker(lines[k]); !ok {
			break
		}
		i = k
	}
	return list, i, nil
}

func (p *parser) parseFieldList(lines []string, i, base int) (*FieldList, int, error) {
	fl := &FieldList{}
	for i < len(lines) {
		m := fieldRe.FindStringSubmatch(lines[i])
		if m == nil {
			break
		}
		block, end := collectIndented(lines, i+1)
		body, err := p.parseBlocks(append([]string{m[2]}, block...), base+i)
		if err != nil {
			return nil, 0, err
		}
		fl.Items = append(fl.Items, DefItem{Term: m[1], Body: body})
		i = end
		k := i
		for k < len(lines) && isBlank(lines[k]) {
			k++
		}
		if k >= len(lines) || !fieldRe.MatchString(lines[k]) {
			break
		}
		i = k
	}
	return fl, i, nil
}

func (p *parser) parseDefList(lines []string, i, base int) (*DefList, int, error) {
	dl := &DefList{}
	for i+1 < len(lines) && !isBlank(lines[i]) && indentOf(lines[i]) == 0 && !isBlank(lines[i+1]) && indentOf(lines[i+1]) > 0 {
		term := strings.TrimSpace(lines[i])
		if idx := strings.Index(term, " : "); idx > 0 {
			term = term[:idx] // classifier
		}
		block, end := collectIndented(lines, i+1)
		body, err := p.parseBlocks(block, base+i+1)
		if err != nil {
			return nil, 0, err
		}
		dl.Items = append(dl.Items, DefItem{Term: term, Body: body})
		i = end
	}
	return dl, i, nil
}

// explicit handles an explicit markup block starting with "..".
func (p *parser) explicit(head string, block []string, line int) ([]Node, error) {
	switch {
	case head == "":
		return nil, nil // comment
	case targetRe.MatchString(head):
		m := targetRe.FindStringSubmatch(head)
		name := normalizeName(strings.Trim(m[1], "`"))
		url := strings.TrimSpace(m[2])
		for _, l := range block {
			url += strings.TrimSpace(l)
		}
		if url == "" {
			id := p.uniqueID(Slugify(name))
			p.doc.Labels[name] = Label{ID: id}
			p.pending = append(p.pending, name)
			return []Node{&Anchor{ID: id}}, nil
		}
		if !strings.HasSuffix(url, "_") {
			p.doc.Targets[name] = url
		}
		return nil, nil
	case strings.HasPrefix(head, "__ "), strings.HasPrefix(head, "|"), strings.HasPrefix(head, "["):
		return nil, nil
	case directiveRe.MatchString(head):
		m := directiveRe.FindStringSubmatch(head)
		return p.directive(m[1], strings.TrimSpace(m[2]), block, line)
	default:
		return nil, nil // comment
	}
}

var admonitionTitles = map[string]string{
	"note":      "Note",
	"warning":   "Warning",
	"tip":       "Tip",
	"important": "Important",
	"caution":   "Caution",
	"danger":    "Danger",
	"attention": "Attention",
	"hint":      "Hint",
	"error":     "Error",
	"seealso":   "See also",
	"todo":      "Todo",
}

var versionTitles = map[string]string{
	"versionadded":   "New in version %s",
	"versionchanged": "Changed in version %s",
	"deprecated":     "Deprecated since version %s",
}

// ignoredDirectives produce no output in an HTML build without autodoc.
var ignoredDirectives = map[string]bool{
	"highlight": true, "default-role": true, "currentmodule": true, "module": true,
	"index": true, "sectionauthor": true, "codeauthor": true, "meta": true,
	"tabularcolumns": true, "contents": true, "role": true, "testsetup": true,
	"testcleanup": true, "py:module": true, "py:currentmodule": true,
}

func (p *parser) directive(name, arg string, block []string, line int) ([]Node, error) {
	opts, content := splitOptions(block)
	contentLine := line + 1 + (len(block) - len(content))
	kind := strings.ToLower(name)

	if title, ok := admonitionTitles[kind]; ok {
		return p.admonition(kind, title, arg, content, contentLine)
	}
	if format, ok := versionTitles[kind]; ok {
		version, rest, _ := strings.Cut(arg, " ")
		if rest != "" {
			content = append([]string{rest, ""}, content...)
		}
		return p.admonition(kind, fmt.Sprintf(format, version), "", content, contentLine)
	}

	switch kind {
	case "toctree":
		tt := &Toctree{Caption: opts["caption"], Line: line, Glob: hasOpt(opts, "glob"), Hidden: hasOpt(opts, "hidden")}
		if d, err := strconv.Atoi(opts["maxdepth"]); err == nil {
			tt.MaxDepth = d
		}
		for _, l := range content {
			entry := strings.TrimSpace(l)
			if entry == "" || strings.HasPrefix(entry, "..") {
				continue
			}
			if m := tocEntryRe.FindStringSubmatch(entry); m != nil {
				tt.Entries = append(tt.Entries, TocEntry{Title: m[1], Target: m[2]})
				continue
			}
			tt.Entries = append(tt.Entries, TocEntry{Target: entry})
		}
		p.doc.Toctrees = append(p.doc.Toctrees, tt)
		return []Node{tt}, nil
	case "code-block", "code", "sourcecode":
		return []Node{&Literal{Text: strings.Join(content, "\n"), Language: arg}}, nil
	case "math":
		text := strings.Join(content, "\n")
		if arg != "" {
			text = arg + "\n" + text
		}
		return []Node{&Literal{Text: strings.TrimSpace(text), Language: "math"}}, nil
	case "admonition":
		return p.admonition("admonition", arg, "", content, contentLine)
	case "topic":
		return p.admonition("topic", arg, "", content, contentLine)
	case "rubric":
		return []Node{&Paragraph{Text: "**" + arg + "**"}}, nil
	case "centered":
		return []Node{&Paragraph{Text: arg}}, nil
	case "image":
		return []Node{&Image{URI: arg, Alt: opts["alt"], Width: opts["width"]}}, nil
	case "figure":
		caption, err := p.parseBlocks(content, contentLine)
		if err != nil {
			return nil, err
		}
		return []Node{&Image{URI: arg, Alt: opts["alt"], Width: opts["width"], Caption: caption}}, nil
	case "raw":
		if strings.Contains(strings.ToLower(arg), "html") {
			return []Node{&Raw{HTML: strings.Join(content, "\n")}}, nil
		}
		return nil, nil
	case "only", "container", "compound":
		return p.parseBlocks(content, contentLine)
	}

	switch {
	case ignoredDirectives[kind]:
	case strings.HasPrefix(kind, "auto"):
		p.warnf(line, "directive %q needs Python introspection and is skipped", name)
	case strings.HasPrefix(kind, "py:"):
		p.warnf(line, "directive %q is skipped", name)
	default:
		p.warnf(line, "unknown directive type %q", name)
	}
	return nil, nil
}

func (p *parser) admonition(kind, title, arg string, content []string, line int) ([]Node, error) {
	if arg != "" {
		content = append([]string{arg, ""}, content...)
	}
	body, err := p.parseBlocks(content, line)
	if err != nil {
		return nil, err
	}
	return []Node{&Admonition{Kind: kind, Title: title, Body: body}}, nil
}

func hasOpt(opts map[string]string, key string) bool {
	_, ok := opts[key]
	return ok
}

// splitOptions separates a leading ":key: value" option block from directive content.
func splitOptions(block []string) (map[string]string, []string) {
	opts := map[string]string{}
	i := 0
	for i < len(block) {
		m := optionRe.FindStringSubmatch(block[i])
		if m == nil {
			break
		}
		opts[m[1]] = strings.TrimSpace(m[2])
		i++
	}
	for i < len(block) && isBlank(block[i]) {
		i++
	}
	return opts, block[i:]
}

const adornChars = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// adornment reports whether l is a section adornment line and returns its character.
func adornment(l string) (rune, bool) {
	if len(l) < 2 || l == "::" || l == ".." || indentOf(l) > 0 {
		return 0, false
	}
	first, _ := utf8.DecodeRuneInString(l)
	if !strings.ContainsRune(adornChars, first) {
		return 0, false
	}
	for _, r := range l {
		if r != first {
			return 0, false
		}
	}
	return first, true
}

func isBlank(s string) bool { return strings.TrimSpace(s) == "" }

func indentOf(s string) int {
	return len(s) - len(strings.TrimLeft(s, " "))
}

// collectIndented returns the dedented block of blank or indented lines starting
// at start, and the index of the first line after it.
func collectIndented(lines []string, start int) ([]string, int) {
	end := start
	for end < len(lines) && (isBlank(lines[end]) || indentOf(lines[end]) > 0) {
		end++
	}
	block := lines[start:end]
	for len(block) > 0 && isBlank(block[len(block)-1]) {
		block = block[:len(block)-1]
	}
	return dedent(block), end
}

func dedent(block []string) []string {
	minIndent := -1
	for _, l := range block {
		if isBlank(l) {
			continue
		}
		if n := indentOf(l); minIndent < 0 || n < minIndent {
			minIndent = n
		}
	}
	out := make([]string, len(block))
	for i, l := range block {
		if isBlank(l) {
			out[i] = ""
			continue
		}
		out[i] = l[minIndent:]
	}
	return out
}

func expandTabs(s string) string {
	if !strings.Contains(s, "\t") {
		return s
	}
	var b strings.Builder
	col := 0
	for _, r := range s {
		switch r {
		case '\t':
			n := 8 - col%8
			b.WriteString(strings.Repeat(" ", n))
			col += n
		case '\n':
			b.WriteRune(r)
			col = 0
		default:
			b.WriteRune(r)
			col++
		}
	}
	return b.String()
}
