package rst

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	roleRe       = regexp.MustCompile("^:([A-Za-z0-9_+.:-]+):`")
	suffixRoleRe = regexp.MustCompile(`^:([A-Za-z0-9_+.:-]+):`)
	embeddedRe   = regexp.MustCompile(`(?s)^(.*?)\s*<([^<>]+)>$`)
	wordRefRe    = regexp.MustCompile(`^([A-Za-z0-9](?:[A-Za-z0-9_.+-]*[A-Za-z0-9])?)_(?:[^A-Za-z0-9_]|$)`)
	bareURLRe    = regexp.MustCompile(`^(?:https?|ftp)://[^\s<>"]+`)
)

// pyRoles are rendered as code cross references without resolution.
var pyRoles = map[string]bool{
	"func": true, "meth": true, "class": true, "mod": true, "attr": true, "exc": true,
	"data": true, "obj": true, "const": true, "any": true,
}

var literalRoles = map[string]bool{
	"code": true, "literal": true, "samp": true, "file": true, "command": true,
	"program": true, "envvar": true, "option": true, "kbd": true, "makevar": true,
	"mimetype": true, "regexp": true, "token": true, "keyword": true,
}

var simpleRoles = map[string]string{
	"emphasis": "em", "strong": "strong", "sub": "sub", "subscript": "sub",
	"sup": "sup", "superscript": "sup", "term": "em", "dfn": "em", "title-reference": "cite",
}

// inline renders reStructuredText inline markup to HTML.
func (r *renderer) inline(text string) string {
	var b strings.Builder
	i := 0
	for i < len(text) {
		c := text[i]
		rest := text[i:]
		switch {
		case c == '\\' && i+1 < len(text):
			_, size := utf8.DecodeRuneInString(text[i+1:])
			b.WriteString(html.EscapeString(text[i+1 : i+1+size]))
			i += 1 + size
			continue
		case strings.HasPrefix(rest, "``"):
			if end := strings.Index(rest[2:], "``"); end > 0 {
				b.WriteString(literal(rest[2:2+end], "docutils literal notranslate"))
				i += end + 4
				continue
			}
		case c == ':' && roleRe.MatchString(rest):
			m := roleRe.FindStringSubmatch(rest)
			start := len(m[0])
			if end := closingBacktick(rest, start); end > 0 {
				b.WriteString(r.role(m[1], rest[start:end]))
				i += end + 1
				continue
			}
		case c == '`' && wordStart(text, i):
			if end := closingBacktick(rest, 1); end > 1 {
				content := rest[1:end]
				n := end + 1
				switch {
				case strings.HasPrefix(rest[n:], "__"):
					b.WriteString(r.reference(content, true))
					n += 2
				case strings.HasPrefix(rest[n:], "_"):
					b.WriteString(r.reference(content, false))
					n++
				default:
					if m := suffixRoleRe.FindStringSubmatch(rest[n:]); m != nil {
						b.WriteString(r.role(m[1], content))
						n += len(m[0])
					} else {
						b.WriteString("<cite>" + r.plain(content) + "</cite>")
					}
				}
				i += n
				continue
			}
		case strings.HasPrefix(rest, "**") && wordStart(text, i) && len(rest) > 2 && !isSpaceByte(rest[2]):
			if end := closingMarker(rest, 2, "**"); end > 0 {
				b.WriteString("<strong>" + r.plain(rest[2:end]) + "</strong>")
				i += end + 2
				continue
			}
		case c == '*' && wordStart(text, i) && len(rest) > 1 && !isSpaceByte(rest[1]):
			if end := closingMarker(rest, 1, "*"); end > 0 {
				b.WriteString("<em>" + r.plain(rest[1:end]) + "</em>")
				i += end + 1
				continue
			}
		case wordStart(text, i) && isAlnumByte(c):
			if m := bareURLRe.FindString(rest); m != "" {
				url := strings.TrimRight(m, ".,;:!?)'")
				fmt.Fprintf(&b, "<a class=\"reference external\" href=\"%s\">%s</a>", html.EscapeString(url), html.EscapeString(url))
				i += len(url)
				continue
			}
			if m := wordRefRe.FindStringSubmatch(rest); m != nil {
				b.WriteString(r.reference(m[1], false))
				i += len(m[1]) + 1
				continue
			}
		}
		_, size := utf8.DecodeRuneInString(rest)
		b.WriteString(html.EscapeString(rest[:size]))
		i += size
	}
	return b.String()
}

// plain escapes text, honouring backslash escapes only.
func (r *renderer) plain(text string) string {
	var b strings.Builder
	for i := 0; i < len(text); i++ {
		if text[i] == '\\' && i+1 < len(text) {
			i++
		}
		b.WriteString(html.EscapeString(text[i : i+1]))
	}
	return b.String()
}

func (r *renderer) role(name, content string) string {
	name = strings.TrimPrefix(name, "py:")
	switch {
	case name == "doc":
		title, target := splitEmbedded(content)
		l, ok := r.res.Doc(r.doc.Name, target)
		if !ok {
			r.errs = append(r.errs, &RefError{Doc: r.doc.Name, Kind: "doc", Target: target})
			return "<span class=\"xref std std-doc\">" + html.EscapeString(content) + "</span>"
		}
		if title == "" {
			title = l.Title
		}
		return internalLink(l.Href, "<span class=\"doc\">"+html.EscapeString(title)+"</span>")
	case name == "ref":
		title, target := splitEmbedded(content)
		l, ok := r.ref(target)
		if !ok {
			r.errs = append(r.errs, &RefError{Doc: r.doc.Name, Kind: "ref", Target: target})
			return "<span class=\"xref std std-ref\">" + html.EscapeString(content) + "</span>"
		}
		if title == "" {
			title = l.Title
		}
		if title == "" {
			title = target
		}
		return internalLink(l.Href, "<span class=\"std std-ref\">"+html.EscapeString(title)+"</span>")
	case pyRoles[name]:
		title, target := splitEmbedded(content)
		if title == "" {
			title = strings.TrimPrefix(target, "!")
			if strings.HasPrefix(title, "~") {
				title = title[strings.LastIndex(title, ".")+1:]
				title = strings.TrimPrefix(title, "~")
			}
			if (name == "func" || name == "meth") && !strings.HasSuffix(title, ")") {
				title += "()"
			}
		}
		return literal(title, "xref py py-"+name+" docutils literal notranslate")
	case name == "math":
		return "<span class=\"math notranslate nohighlight\">\\(" + html.EscapeString(content) + "\\)</span>"
	case literalRoles[name]:
		return literal(content, "docutils literal notranslate")
	case simpleRoles[name] != "":
		tag := simpleRoles[name]
		return "<" + tag + ">" + r.plain(content) + "</" + tag + ">"
	case name == "abbr":
		title, abbr := splitEmbedded(content)
		if title == "" {
			return "<abbr>" + html.EscapeString(abbr) + "</abbr>"
		}
		return "<abbr title=\"" + html.EscapeString(abbr) + "\">" + html.EscapeString(title) + "</abbr>"
	case name == "download":
		title, target := splitEmbedded(content)
		if title == "" {
			title = target
		}
		return "<a class=\"reference download internal\" download=\"\" href=\"" + html.EscapeString(target) + "\">" + literal(title, "xref download docutils literal notranslate") + "</a>"
	default:
		r.doc.Warnings = append(r.doc.Warnings, fmt.Sprintf("%s: unknown interpreted text role %q", r.doc.Name, name))
		return literal(content, "docutils literal notranslate")
	}
}

// ref resolves a label locally before asking the resolver.
func (r *renderer) ref(label string) (Link, bool) {
	key := normalizeName(label)
	if l, ok := r.doc.Labels[key]; ok {
		return Link{Href: "#" + l.ID, Title: l.Title}, true
	}
	return r.res.Ref(r.doc.Name, key)
}

// reference renders `text <uri>`_, `name`_ and name_ hyperlink references.
func (r *renderer) reference(content string, anonymous bool) string {
	text, target := splitEmbedded(content)
	if target != "" && text != "" || strings.HasPrefix(strings.TrimSpace(content), "<") {
		if text == "" {
			text = target
		}
		if strings.HasSuffix(target, "_") && !strings.Contains(target, "/") {
			if href, ok := r.lookupTarget(strings.TrimSuffix(target, "_")); ok {
				return externalOrInternal(href, r.plain(text))
			}
			r.errs = append(r.errs, &RefError{Doc: r.doc.Name, Kind: "target", Target: target})
			return r.plain(text)
		}
		if !anonymous {
			r.doc.Targets[normalizeName(text)] = target
		}
		return externalOrInternal(target, r.plain(text))
	}
	name := content
	if href, ok := r.lookupTarget(name); ok {
		return externalOrInternal(href, r.plain(name))
	}
	if !anonymous {
		r.errs = append(r.errs, &RefError{Doc: r.doc.Name, Kind: "target", Target: name})
	}
	return r.plain(name)
}

func (r *renderer) lookupTarget(name string) (string, bool) {
	key := normalizeName(name)
	if url, ok := r.doc.Targets[key]; ok {
		return url, true
	}
	if l, ok := r.doc.Labels[key]; ok {
		return "#" + l.ID, true
	}
	if id, ok := r.doc.implicit[key]; ok {
		return "#" + id, true
	}
	return "", false
}

func splitEmbedded(content string) (title, target string) {
	content = strings.TrimSpace(content)
	if m := embeddedRe.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
	}
	return "", content
}

func externalOrInternal(href, body string) string {
	if strings.Contains(href, "://") || strings.HasPrefix(href, "mailto:") {
		return "<a class=\"reference external\" href=\"" + html.EscapeString(href) + "\">" + body + "</a>"
	}
	return internalLink(href, body)
}

func internalLink(href, body string) string {
	return "<a class=\"reference internal\" href=\"" + html.EscapeString(href) + "\">" + body + "</a>"
}

func literal(text, class string) string {
	return "<code class=\"" + class + "\"><span class=\"pre\">" + html.EscapeString(text) + "</span></code>"
}

// closingBacktick finds the backtick ending interpreted text opened before from.
func closingBacktick(s string, from int) int {
	for j := from; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case '`':
			if j > from {
				return j
			}
			return -1
		}
	}
	return -1
}

// closingMarker finds an end marker preceded by non-whitespace.
func closingMarker(s string, from int, marker string) int {
	for j := from + 1; j+len(marker) <= len(s); j++ {
		if s[j] == '\\' {
			j++
			continue
		}
		if strings.HasPrefix(s[j:], marker) && !isSpaceByte(s[j-1]) {
			if marker == "*" && strings.HasPrefix(s[j:], "**") {
				continue
			}
			if end := j + len(marker); end < len(s) && isAlnumByte(s[end]) {
				continue
			}
			return j
		}
	}
	return -1
}

// wordStart reports whether inline markup may start at position i.
func wordStart(s string, i int) bool {
	if i == 0 {
		return true
	}
	prev, _ := utf8.DecodeLastRuneInString(s[:i])
	return unicode.IsSpace(prev) || strings.ContainsRune(`-:/'"<([{`, prev)
}

func isSpaceByte(c byte) bool { return c == ' ' || c == '\t' || c == '\n' }

func isAlnumByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
