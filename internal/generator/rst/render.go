package rst

import (
	"errors"
	"fmt"
	"html"
	"path"
	"strings"
)

// Link is a resolved cross reference.
type Link struct {
	Href  string // relative to the referring page
	Title string
}

// Resolver resolves references that leave the current document.
type Resolver interface {
	// Doc resolves a document name (as written in a toctree or :doc: role) seen in document from.
	Doc(from, target string) (Link, bool)
	// Ref resolves a label defined anywhere in the document set.
	Ref(from, label string) (Link, bool)
	// Glob lists document names matching a toctree glob pattern, in order.
	Glob(from, pattern string) []string
}

// RefError reports a cross reference that could not be resolved.
type RefError struct {
	Doc    string
	Kind   string // "doc", "ref", "toctree", "target"
	Target string
}

func (e *RefError) Error() string {
	switch e.Kind {
	case "toctree":
		return fmt.Sprintf("%s: toctree contains reference to nonexisting document %q", e.Doc, e.Target)
	case "target":
		return fmt.Sprintf("%s: unknown target name %q", e.Doc, e.Target)
	default:
		return fmt.Sprintf("%s: undefined %s reference %q", e.Doc, e.Kind, e.Target)
	}
}

type noResolver struct{}

func (noResolver) Doc(string, string) (Link, bool) { return Link{}, false }
func (noResolver) Ref(string, string) (Link, bool) { return Link{}, false }
func (noResolver) Glob(string, string) []string    { return nil }

type renderer struct {
	doc  *Document
	res  Resolver
	b    strings.Builder
	errs []error
}

// Render produces the HTML body of d. All unresolved references are reported
// together; the returned HTML is still usable for diagnostics.
func (d *Document) Render(res Resolver) (string, error) {
	if res == nil {
		res = noResolver{}
	}
	r := &renderer{doc: d, res: res}
	var open []int
	for _, n := range d.Blocks {
		if s, ok := n.(*Section); ok {
			for len(open) > 0 && open[len(open)-1] >= s.Level {
				r.b.WriteString("</section>\n")
				open = open[:len(open)-1]
			}
			open = append(open, s.Level)
		}
		r.block(n)
	}
	for range open {
		r.b.WriteString("</section>\n")
	}
	return r.b.String(), errors.Join(r.errs...)
}

func (r *renderer) blocks(nodes []Node) {
	for _, n := range nodes {
		r.block(n)
	}
}

func (r *renderer) block(n Node) {
	w := &r.b
	switch n := n.(type) {
	case *Section:
		level := min(n.Level, 6)
		fmt.Fprintf(w, "<section id=\"%s\">\n<h%d>%s<a class=\"headerlink\" href=\"#%s\" title=\"Link to this heading\">¶</a></h%d>\n",
			n.ID, level, r.inline(n.Title), n.ID, level)
	case *Paragraph:
		fmt.Fprintf(w, "<p>%s</p>\n", r.inline(n.Text))
	case *Literal:
		class := "literal-block"
		if n.Language != "" {
			class += " highlight-" + html.EscapeString(n.Language)
		}
		fmt.Fprintf(w, "<pre class=\"%s\">%s</pre>\n", class, html.EscapeString(n.Text))
	case *List:
		tag := "ul"
		if n.Ordered {
			tag = "ol"
		}
		fmt.Fprintf(w, "<%s class=\"simple\">\n", tag)
		for _, item := range n.Items {
			w.WriteString("<li>")
			r.compact(item)
			w.WriteString("</li>\n")
		}
		fmt.Fprintf(w, "</%s>\n", tag)
	case *DefList:
		w.WriteString("<dl class=\"simple\">\n")
		for _, item := range n.Items {
			fmt.Fprintf(w, "<dt>%s</dt><dd>", r.inline(item.Term))
			r.compact(item.Body)
			w.WriteString("</dd>\n")
		}
		w.WriteString("</dl>\n")
	case *FieldList:
		w.WriteString("<dl class=\"field-list simple\">\n")
		for _, item := range n.Items {
			fmt.Fprintf(w, "<dt>%s<span class=\"colon\">:</span></dt><dd>", r.inline(item.Term))
			r.compact(item.Body)
			w.WriteString("</dd>\n")
		}
		w.WriteString("</dl>\n")
	case *Quote:
		w.WriteString("<blockquote>\n")
		r.blocks(n.Body)
		w.WriteString("</blockquote>\n")
	case *Admonition:
		fmt.Fprintf(w, "<div class=\"admonition %s\">\n", html.EscapeString(n.Kind))
		if n.Title != "" {
			fmt.Fprintf(w, "<p class=\"admonition-title\">%s</p>\n", r.inline(n.Title))
		}
		r.blocks(n.Body)
		w.WriteString("</div>\n")
	case *Image:
		img := fmt.Sprintf("<img src=\"%s\" alt=\"%s\"", html.EscapeString(n.URI), html.EscapeString(n.Alt))
		if n.Width != "" {
			img += fmt.Sprintf(" style=\"width: %s\"", html.EscapeString(n.Width))
		}
		img += " />"
		if n.Caption == nil {
			w.WriteString(img + "\n")
			return
		}
		fmt.Fprintf(w, "<figure>\n%s\n<figcaption>", img)
		r.compact(n.Caption)
		w.WriteString("</figcaption>\n</figure>\n")
	case *Raw:
		w.WriteString(n.HTML + "\n")
	case *Anchor:
		fmt.Fprintf(w, "<span id=\"%s\"></span>", n.ID)
	case *Transition:
		w.WriteString("<hr class=\"docutils\" />\n")
	case *Toctree:
		r.toctree(n)
	}
}

// compact renders a single paragraph without its <p> wrapper.
func (r *renderer) compact(nodes []Node) {
	if len(nodes) == 1 {
		if p, ok := nodes[0].(*Paragraph); ok {
			r.b.WriteString(r.inline(p.Text))
			return
		}
	}
	r.blocks(nodes)
}

func (r *renderer) toctree(t *Toctree) {
	type item struct{ href, title string }
	var items []item
	for _, e := range t.Entries {
		target := e.Target
		switch {
		case target == "self":
			continue
		case strings.Contains(target, "://"):
			title := e.Title
			if title == "" {
				title = target
			}
			items = append(items, item{target, title})
			continue
		case t.Glob && strings.ContainsAny(target, "*?["):
			for _, name := range r.res.Glob(r.doc.Name, target) {
				if name == r.doc.Name {
					continue
				}
				if l, ok := r.res.Doc(r.doc.Name, "/"+name); ok {
					items = append(items, item{l.Href, l.Title})
				}
			}
			continue
		}
		l, ok := r.res.Doc(r.doc.Name, target)
		if !ok {
			r.errs = append(r.errs, &RefError{Doc: r.doc.Name, Kind: "toctree", Target: target})
			continue
		}
		title := e.Title
		if title == "" {
			title = l.Title
		}
		items = append(items, item{l.Href, title})
	}
	if t.Hidden {
		return
	}
	w := &r.b
	w.WriteString("<div class=\"toctree-wrapper compound\">\n")
	if t.Caption != "" {
		fmt.Fprintf(w, "<p class=\"caption\" role=\"heading\"><span class=\"caption-text\">%s</span></p>\n", html.EscapeString(t.Caption))
	}
	w.WriteString("<ul>\n")
	for _, it := range items {
		fmt.Fprintf(w, "<li class=\"toctree-l1\"><a class=\"reference internal\" href=\"%s\">%s</a></li>\n", html.EscapeString(it.href), html.EscapeString(it.title))
	}
	w.WriteString("</ul>\n</div>\n")
}

// ResolveDocName resolves a document reference made from document from.
// Absolute references start with "/"; known source suffixes are dropped.
func ResolveDocName(from, target string) string {
	for _, suffix := range []string{".rst", ".md", ".txt"} {
		target = strings.TrimSuffix(target, suffix)
	}
	if strings.HasPrefix(target, "/") {
		return path.Clean(strings.TrimPrefix(target, "/"))
	}
	return path.Clean(path.Join(path.Dir(from), target))
}

// RelativeHref returns the URL of document to's page as seen from document from's page.
func RelativeHref(from, to string) string {
	fromParts := strings.Split(path.Dir(from), "/")
	if fromParts[0] == "." {
		fromParts = nil
	}
	toParts := strings.Split(to, "/")
	common := 0
	for common < len(fromParts) && common < len(toParts)-1 && fromParts[common] == toParts[common] {
		common++
	}
	rel := strings.Repeat("../", len(fromParts)-common) + strings.Join(toParts[common:], "/")
	return rel + ".html"
}
