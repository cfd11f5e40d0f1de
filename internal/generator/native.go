package generator

import (
	"bytes"
	"context"
	_ "embed"
	stderrors "errors"
	"fmt"
	"html"
	"html/template"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	"git.home.luguber.info/inful/docpipe/internal/config"
	"git.home.luguber.info/inful/docpipe/internal/docs"
	"git.home.luguber.info/inful/docpipe/internal/generator/rst"
	"git.home.luguber.info/inful/docpipe/internal/logfields"
	"git.home.luguber.info/inful/docpipe/internal/metrics"
	"git.home.luguber.info/inful/docpipe/internal/version"
)

//go:embed assets/layout.html
var layoutHTML string

//go:embed assets/docpipe.css
var themeCSS []byte

var layout = template.Must(template.New("layout").Parse(layoutHTML))

// ThemeStylesheet is the stylesheet path written below the output root.
const ThemeStylesheet = "_static/docpipe.css"

var assetExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".ico", ".pdf"}

// NativeGenerator renders documentation without external tools: .rst through
// the rst package, .md through goldmark and .txt as preformatted text.
type NativeGenerator struct {
	md       goldmark.Markdown
	recorder metrics.Recorder
}

func NewNativeGenerator() *NativeGenerator {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
			parser.WithASTTransformers(util.Prioritized(docLinkTransformer{}, 100)),
		),
		goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
	)
	return &NativeGenerator{md: md, recorder: metrics.NoopRecorder{}}
}

// WithRecorder attaches a metrics recorder for render duration and page counts.
func (g *NativeGenerator) WithRecorder(r metrics.Recorder) *NativeGenerator {
	if r != nil {
		g.recorder = r
	}
	return g
}

func (g *NativeGenerator) Name() string { return config.GeneratorNative }

type page struct {
	file  docs.DocFile
	name  string
	title string
	rst   *rst.Document
	md    ast.Node
	body  string
}

func (g *NativeGenerator) Generate(ctx context.Context, sourceDir, outputDir string, opts Options) (err error) {
	start := time.Now()
	defer func() { g.recorder.ObserveToolDuration(g.Name(), time.Since(start), err == nil) }()

	if opts.Builder != "" && opts.Builder != config.DefaultBuilder {
		return failure("native generator only supports the html builder", fmt.Errorf("builder %q", opts.Builder)).
			WithContext("builder", opts.Builder).
			Build()
	}
	suffixes := opts.Suffixes
	if len(suffixes) == 0 {
		suffixes = config.DefaultSuffixes()
	}
	files, err := docs.Discover(sourceDir, docs.Options{Suffixes: suffixes, Exclude: []string{outputDir}})
	if err != nil {
		return failure("cannot read documentation sources", err).WithContext("path", sourceDir).Build()
	}
	slog.Info("Rendering documentation", logfields.Generator(g.Name()), logfields.Path(sourceDir), logfields.Output(outputDir), slog.Int("sources", len(files)))

	s, err := g.load(ctx, files)
	if err != nil {
		return err
	}
	if err := g.render(ctx, s, opts); err != nil {
		return err
	}
	if err := s.write(ctx, outputDir, opts); err != nil {
		return err
	}
	if err := copyAssets(sourceDir, outputDir); err != nil {
		return failure("failed to copy static files", err).WithContext("path", outputDir).Build()
	}
	g.recorder.SetPagesGenerated(len(s.names))
	slog.Info("Documentation rendered", logfields.Output(outputDir), slog.Int("pages", len(s.names)), logfields.Duration(time.Since(start)))
	return nil
}

// load reads and parses every source. Markup errors are collected and reported together.
func (g *NativeGenerator) load(ctx context.Context, files []docs.DocFile) (*site, error) {
	s := &site{pages: map[string]*page{}, labels: map[string]labelRef{}}
	var errs []error
	for i := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f := &files[i]
		name := f.DocName()
		if prev, dup := s.pages[name]; dup {
			slog.Warn("Duplicate document name; keeping first source", logfields.Name(name), logfields.File(prev.file.RelativePath), slog.String("ignored", f.RelativePath))
			continue
		}
		if err := f.LoadContent(); err != nil {
			errs = append(errs, err)
			continue
		}
		p := &page{file: *f, name: name, title: name}
		switch f.Extension {
		case ".rst":
			doc, err := rst.Parse(name, f.Content)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			p.rst = doc
			if doc.Title != "" {
				p.title = doc.Title
			}
		case ".md":
			p.md = g.md.Parser().Parse(text.NewReader(f.Content))
			if t := firstHeading(p.md, f.Content); t != "" {
				p.title = t
			}
		}
		s.pages[name] = p
		s.names = append(s.names, name)
	}
	if len(errs) > 0 {
		return nil, failure("documentation sources contain markup errors", stderrors.Join(errs...)).
			WithContext("errors", len(errs)).
			Build()
	}
	slices.Sort(s.names)
	for _, name := range s.names {
		if doc := s.pages[name].rst; doc != nil {
			for key, label := range doc.Labels {
				if _, seen := s.labels[key]; !seen {
					s.labels[key] = labelRef{doc: name, label: label}
				}
			}
		}
	}
	return s, nil
}

func (g *NativeGenerator) render(ctx context.Context, s *site, opts Options) error {
	var errs []error
	for _, name := range s.names {
		if err := ctx.Err(); err != nil {
			return err
		}
		p := s.pages[name]
		switch {
		case p.rst != nil:
			body, err := p.rst.Render(s)
			if err != nil {
				errs = append(errs, err)
			}
			for _, w := range p.rst.Warnings {
				if opts.WarningsAsErrors {
					errs = append(errs, stderrors.New(w))
					continue
				}
				if !opts.Quiet {
					slog.Warn("Documentation warning", logfields.File(p.file.RelativePath), slog.String("warning", w))
				}
			}
			p.body = body
		case p.md != nil:
			var buf bytes.Buffer
			if err := g.md.Renderer().Render(&buf, p.file.Content, p.md); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", p.file.RelativePath, err))
				continue
			}
			p.body = buf.String()
		default:
			p.body = "<pre class=\"literal-block\">" + html.EscapeString(string(p.file.Content)) + "</pre>\n"
		}
	}
	if len(errs) > 0 {
		return failure("documentation contains unresolved references", stderrors.Join(errs...)).
			WithContext("errors", len(errs)).
			Build()
	}
	return nil
}

type labelRef struct {
	doc   string
	label rst.Label
}

// site is the document set of one build. It resolves cross references for the rst renderer.
type site struct {
	pages  map[string]*page
	names  []string
	labels map[string]labelRef
}

func (s *site) Doc(from, target string) (rst.Link, bool) {
	name := rst.ResolveDocName(from, target)
	p, ok := s.pages[name]
	if !ok {
		return rst.Link{}, false
	}
	return rst.Link{Href: rst.RelativeHref(from, name), Title: p.title}, true
}

func (s *site) Ref(from, label string) (rst.Link, bool) {
	ref, ok := s.labels[label]
	if !ok {
		return rst.Link{}, false
	}
	href := "#" + ref.label.ID
	if ref.doc != from {
		href = rst.RelativeHref(from, ref.doc) + href
	}
	return rst.Link{Href: href, Title: ref.label.Title}, true
}

func (s *site) Glob(from, pattern string) []string {
	full := strings.TrimPrefix(pattern, "/")
	if !strings.HasPrefix(pattern, "/") {
		full = path.Join(path.Dir(from), pattern)
	}
	var out []string
	for _, name := range s.names {
		if ok, _ := path.Match(full, name); ok {
			out = append(out, name)
		}
	}
	return out
}

type navItem struct {
	Href    string
	Title   string
	Current bool
}

type layoutData struct {
	Title     string
	SiteTitle string
	Root      string
	Home      string
	Version   string
	Nav       []navItem
	Body      template.HTML
}

// navEntries lists the documents reachable from the root toctrees, or every
// document when there is no index.
func (s *site) navEntries() []string {
	index, ok := s.pages["index"]
	if !ok || index.rst == nil {
		return slices.DeleteFunc(slices.Clone(s.names), func(n string) bool { return n == "index" })
	}
	var out []string
	for _, tt := range index.rst.Toctrees {
		for _, e := range tt.Entries {
			switch {
			case e.Target == "self" || strings.Contains(e.Target, "://"):
			case tt.Glob && strings.ContainsAny(e.Target, "*?["):
				out = append(out, s.Glob("index", e.Target)...)
			default:
				if _, ok := s.pages[rst.ResolveDocName("index", e.Target)]; ok {
					out = append(out, rst.ResolveDocName("index", e.Target))
				}
			}
		}
	}
	return slices.DeleteFunc(out, func(n string) bool { return n == "index" })
}

func (s *site) siteTitle(opts Options) string {
	if opts.Title != "" {
		return opts.Title
	}
	if p, ok := s.pages["index"]; ok && p.title != "index" {
		return p.title
	}
	return "Documentation"
}

// write renders every page into its layout. Only pages of this build are written.
func (s *site) write(ctx context.Context, outputDir string, opts Options) error {
	siteTitle := s.siteTitle(opts)
	nav := s.navEntries()
	for _, name := range s.names {
		if err := ctx.Err(); err != nil {
			return err
		}
		p := s.pages[name]
		data := layoutData{
			Title:     p.title,
			SiteTitle: siteTitle,
			Root:      strings.Repeat("../", strings.Count(name, "/")),
			Home:      rst.RelativeHref(name, "index"),
			Version:   version.Version,
			Body:      template.HTML(p.body), // #nosec G203 -- produced by the renderers, which escape source text
		}
		for _, n := range nav {
			data.Nav = append(data.Nav, navItem{Href: rst.RelativeHref(name, n), Title: s.pages[n].title, Current: n == name})
		}
		var buf bytes.Buffer
		if err := layout.Execute(&buf, data); err != nil {
			return failure("failed to render page layout", err).WithContext("page", name).Build()
		}
		target := filepath.Join(outputDir, filepath.FromSlash(p.file.HTMLPath()))
		if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
			return failure("failed to create page directory", err).WithContext("path", target).Build()
		}
		// #nosec G306 -- generated HTML is a public asset
		if err := os.WriteFile(target, buf.Bytes(), 0o644); err != nil {
			return failure("failed to write page", err).WithContext("path", target).Build()
		}
		slog.Debug("Page written", logfields.File(p.file.HTMLPath()))
	}
	staticDir := filepath.Join(outputDir, "_static")
	if err := os.MkdirAll(staticDir, 0o750); err != nil {
		return failure("failed to create static directory", err).WithContext("path", staticDir).Build()
	}
	// #nosec G306 -- static CSS file is a public asset
	if err := os.WriteFile(filepath.Join(outputDir, filepath.FromSlash(ThemeStylesheet)), themeCSS, 0o644); err != nil {
		return failure("failed to write theme stylesheet", err).WithContext("path", staticDir).Build()
	}
	return nil
}

// copyAssets copies the _static tree and referenced image types into the output.
func copyAssets(sourceDir, outputDir string) error {
	absOut, _ := filepath.Abs(outputDir)
	return filepath.WalkDir(sourceDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(sourceDir, p)
		if err != nil || rel == "." {
			return err
		}
		if d.IsDir() {
			if abs, _ := filepath.Abs(p); abs == absOut {
				return filepath.SkipDir
			}
			name := d.Name()
			if strings.HasPrefix(name, ".") || (name != "_static" && slices.Contains(docs.DefaultSkipDirs, name)) {
				return filepath.SkipDir
			}
			return nil
		}
		inStatic := strings.HasPrefix(filepath.ToSlash(rel), "_static/")
		if !inStatic && !slices.Contains(assetExtensions, strings.ToLower(filepath.Ext(p))) {
			return nil
		}
		return copyFile(p, filepath.Join(outputDir, rel))
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src) // #nosec G304 -- path comes from walking the docs tree
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return err
	}
	out, err := os.Create(dst) // #nosec G304 -- destination is below the output directory
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// docLinkTransformer points Markdown links to sibling sources at their HTML pages.
type docLinkTransformer struct{}

func (docLinkTransformer) Transform(doc *ast.Document, _ text.Reader, _ parser.Context) {
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if l, ok := n.(*ast.Link); ok && entering {
			l.Destination = []byte(rewriteDocLink(string(l.Destination)))
		}
		return ast.WalkContinue, nil
	})
}

func rewriteDocLink(dest string) string {
	if dest == "" || strings.HasPrefix(dest, "#") || strings.Contains(dest, ":") {
		return dest
	}
	target, frag, hasFrag := strings.Cut(dest, "#")
	lower := strings.ToLower(target)
	for _, suffix := range []string{".md", ".rst", ".txt"} {
		if strings.HasSuffix(lower, suffix) {
			target = target[:len(target)-len(suffix)] + ".html"
			break
		}
	}
	if hasFrag {
		return target + "#" + frag
	}
	return target
}

func firstHeading(root ast.Node, src []byte) string {
	var title string
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		h, ok := n.(*ast.Heading)
		if !entering || !ok {
			return ast.WalkContinue, nil
		}
		var b strings.Builder
		_ = ast.Walk(h, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
			if !entering {
				return ast.WalkContinue, nil
			}
			switch t := c.(type) {
			case *ast.Text:
				b.Write(t.Segment.Value(src))
			case *ast.String:
				b.Write(t.Value)
			}
			return ast.WalkContinue, nil
		})
		title = strings.TrimSpace(b.String())
		return ast.WalkStop, nil
	})
	return title
}
