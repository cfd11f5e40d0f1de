// Package verify checks generated HTML output against the documentation sources.
package verify

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/docpipe/internal/docs"
	"git.home.luguber.info/inful/docpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/docpipe/internal/logfields"
	"git.home.luguber.info/inful/docpipe/internal/pipeline"
)

// Options control what is checked.
type Options struct {
	Suffixes   []string
	CheckLinks bool
}

// BrokenLink is an internal link whose target file does not exist.
type BrokenLink struct {
	Page   string // page containing the link, relative to the output root
	URL    string
	Target string // resolved target, relative to the output root
}

// Result summarizes a verification pass.
type Result struct {
	Sources     []string          // doc sources, relative to the docs root
	Pages       map[string]string // page -> extracted heading (or title)
	Missing     []string          // expected pages that were not generated
	BrokenLinks []BrokenLink
}

// OK reports whether nothing was found.
func (r *Result) OK() bool { return len(r.Missing) == 0 && len(r.BrokenLinks) == 0 }

// Run verifies that every source under docsDir produced a page under outputDir
// and, with CheckLinks, that every internal link of those pages resolves.
func Run(ctx context.Context, docsDir, outputDir string, opts Options) (*Result, error) {
	files, err := docs.Discover(docsDir, docs.Options{Suffixes: opts.Suffixes, Exclude: []string{outputDir}})
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "cannot list documentation sources").
			WithContext("path", docsDir).
			Build()
	}

	res := &Result{Pages: make(map[string]string, len(files))}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res.Sources = append(res.Sources, f.RelativePath)
		pagePath := filepath.Join(outputDir, filepath.FromSlash(f.HTMLPath()))
		if _, err := os.Stat(pagePath); err != nil {
			res.Missing = append(res.Missing, f.HTMLPath())
			slog.Warn("Generated page missing", logfields.File(f.RelativePath), logfields.Output(f.HTMLPath()))
			continue
		}
		info, err := ExtractPage(pagePath)
		if err != nil {
			return nil, err
		}
		title := info.Heading
		if title == "" {
			title = info.Title
		}
		res.Pages[f.HTMLPath()] = title
		if opts.CheckLinks {
			res.BrokenLinks = append(res.BrokenLinks, brokenLinks(outputDir, f.HTMLPath(), info.Links)...)
		}
	}
	for _, b := range res.BrokenLinks {
		slog.Warn("Broken internal link", logfields.File(b.Page), logfields.URL(b.URL))
	}
	return res, nil
}

func brokenLinks(outputDir, page string, links []Link) []BrokenLink {
	var out []BrokenLink
	seen := map[string]bool{}
	for _, l := range links {
		if !l.IsInternal {
			continue
		}
		u, err := url.Parse(l.URL)
		if err != nil || u.Path == "" {
			continue
		}
		var target string
		if strings.HasPrefix(u.Path, "/") {
			target = path.Clean(strings.TrimPrefix(u.Path, "/"))
		} else {
			target = path.Clean(path.Join(path.Dir(page), u.Path))
		}
		if strings.HasSuffix(u.Path, "/") {
			target = path.Join(target, "index.html")
		}
		if seen[target] {
			continue
		}
		seen[target] = true
		if strings.HasPrefix(target, "../") || target == ".." {
			out = append(out, BrokenLink{Page: page, URL: l.URL, Target: target})
			continue
		}
		if _, err := os.Stat(filepath.Join(outputDir, filepath.FromSlash(target))); err != nil {
			out = append(out, BrokenLink{Page: page, URL: l.URL, Target: target})
		}
	}
	return out
}

// Err converts findings into an error for the pipeline. Missing pages wrap
// ErrMissingPage and, when strict, ErrGenerationFailure; broken links wrap
// ErrBrokenLink. The caller decides whether the error is fatal.
func (r *Result) Err(strict bool) error {
	var errs []error
	if len(r.Missing) > 0 {
		cause := fmt.Errorf("%w: %s", pipeline.ErrMissingPage, strings.Join(r.Missing, ", "))
		if strict {
			cause = fmt.Errorf("%w: %w", pipeline.ErrGenerationFailure, cause)
		}
		errs = append(errs, errors.GenerationError(fmt.Sprintf("%d documentation source(s) produced no page", len(r.Missing))).
			WithCause(cause).
			WithContext("missing", r.Missing).
			Build())
	}
	if len(r.BrokenLinks) > 0 {
		targets := make([]string, 0, len(r.BrokenLinks))
		for _, b := range r.BrokenLinks {
			targets = append(targets, b.Page+" -> "+b.URL)
		}
		errs = append(errs, errors.GenerationError(fmt.Sprintf("%d broken internal link(s)", len(r.BrokenLinks))).
			WithCause(fmt.Errorf("%w: %s", pipeline.ErrBrokenLink, strings.Join(targets, ", "))).
			Warning().
			Build())
	}
	return stderrors.Join(errs...)
}
