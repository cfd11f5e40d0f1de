package rst

import (
	"errors"
	"path"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// siteResolver resolves documents from a fixed name -> title table.
type siteResolver struct {
	titles map[string]string
	labels map[string]Link
}

func (s siteResolver) Doc(from, target string) (Link, bool) {
	name := ResolveDocName(from, target)
	title, ok := s.titles[name]
	if !ok {
		return Link{}, false
	}
	return Link{Href: RelativeHref(from, name), Title: title}, true
}

func (s siteResolver) Ref(_, label string) (Link, bool) {
	l, ok := s.labels[label]
	return l, ok
}

func (s siteResolver) Glob(_, pattern string) []string {
	var out []string
	for name := range s.titles {
		if ok, _ := path.Match(pattern, name); ok {
			out = append(out, name)
		}
	}
	return out
}

func render(t *testing.T, name, src string, res Resolver) (string, error) {
	t.Helper()
	doc, err := Parse(name, []byte(src))
	require.NoError(t, err)
	return doc.Render(res)
}

func TestSingleHeadingRendersAsH1(t *testing.T) {
	doc, err := Parse("index", []byte("Nengo\n=====\n"))
	require.NoError(t, err)
	assert.Equal(t, "Nengo", doc.Title)
	require.Len(t, doc.Blocks, 1)
	sec, ok := doc.Blocks[0].(*Section)
	require.True(t, ok)
	assert.Equal(t, 1, sec.Level)
	assert.Equal(t, "nengo", sec.ID)

	out, err := doc.Render(nil)
	require.NoError(t, err)
	assert.Contains(t, out, `<section id="nengo">`)
	assert.Contains(t, out, "<h1>Nengo<a class=\"headerlink\"")
}

func TestSectionLevelsFollowAdornmentOrder(t *testing.T) {
	src := "=====\nTitle\n=====\n\nUsage\n-----\n\nText.\n\nAPI\n---\n\nRelease notes\n=============\n"
	doc, err := Parse("index", []byte(src))
	require.NoError(t, err)

	var levels []int
	for _, b := range doc.Blocks {
		if s, ok := b.(*Section); ok {
			levels = append(levels, s.Level)
		}
	}
	assert.Equal(t, []int{1, 2, 2, 3}, levels)

	out, err := doc.Render(nil)
	require.NoError(t, err)
	assert.Equal(t, 4, strings.Count(out, "<section"))
	assert.Equal(t, 4, strings.Count(out, "</section>"))
	assert.Contains(t, out, "<h3>Release notes")
}

func TestDuplicateTitlesGetUniqueIDs(t *testing.T) {
	doc, err := Parse("index", []byte("Example\n=======\n\nExample\n-------\n"))
	require.NoError(t, err)
	assert.Equal(t, "example", doc.Blocks[0].(*Section).ID)
	assert.Equal(t, "example-1", doc.Blocks[1].(*Section).ID)
}

func TestMalformedAdornmentsAreSyntaxErrors(t *testing.T) {
	cases := map[string]struct {
		src  string
		line int
		msg  string
	}{
		"short underline":    {"A longer title\n=====\n", 1, "title underline too short"},
		"overline mismatch":  {"=====\nTitle\n-----\n", 1, "title overline & underline mismatch"},
		"missing underline":  {"=====\nTitle\n", 1, "missing matching underline for section title overline"},
		"title in paragraph": {"Some text\nMore\n====\n", 2, "unexpected section title"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse("broken", []byte(tc.src))
			var se *SyntaxError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tc.line, se.Line)
			assert.Equal(t, tc.msg, se.Msg)
			assert.Contains(t, err.Error(), "broken:")
		})
	}
}

func TestToctreeResolvesEntriesAndReportsMissing(t *testing.T) {
	src := "Index\n=====\n\n.. toctree::\n   :maxdepth: 2\n   :caption: Contents\n\n   getting_started\n   Networks <user_guide/networks>\n   missing\n   self\n"
	doc, err := Parse("index", []byte(src))
	require.NoError(t, err)
	require.Len(t, doc.Toctrees, 1)
	assert.Equal(t, 2, doc.Toctrees[0].MaxDepth)
	assert.Len(t, doc.Toctrees[0].Entries, 4)

	res := siteResolver{titles: map[string]string{
		"getting_started":     "Getting started",
		"user_guide/networks": "Building networks",
	}}
	out, err := doc.Render(res)
	var re *RefError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "toctree", re.Kind)
	assert.Equal(t, "missing", re.Target)
	assert.Contains(t, out, `href="getting_started.html">Getting started</a>`)
	assert.Contains(t, out, `href="user_guide/networks.html">Networks</a>`)
	assert.Contains(t, out, `<span class="caption-text">Contents</span>`)
}

func TestHiddenGlobToctree(t *testing.T) {
	src := ".. toctree::\n   :glob:\n   :hidden:\n\n   examples/*\n"
	res := siteResolver{titles: map[string]string{"examples/a": "A", "examples/b": "B"}}
	out, err := render(t, "index", src, res)
	require.NoError(t, err)
	assert.NotContains(t, out, "toctree-wrapper")
}

func TestDocAndRefRoles(t *testing.T) {
	res := siteResolver{
		titles: map[string]string{"index": "Nengo", "guide/a": "A"},
		labels: map[string]Link{"api-ref": {Href: "../api.html#api", Title: "API reference"}},
	}
	out, err := render(t, "guide/a", "See :doc:`../index` and :ref:`api-ref`.\n", res)
	require.NoError(t, err)
	assert.Contains(t, out, `<a class="reference internal" href="../index.html"><span class="doc">Nengo</span></a>`)
	assert.Contains(t, out, `href="../api.html#api"><span class="std std-ref">API reference</span></a>`)

	_, err = render(t, "guide/a", "See :doc:`nowhere`.\n", res)
	var re *RefError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "doc", re.Kind)
	assert.Equal(t, "nowhere", re.Target)
}

func TestLocalLabelBindsToNextSection(t *testing.T) {
	src := ".. _intro-label:\n\nIntro\n=====\n\nSee :ref:`intro-label`.\n"
	doc, err := Parse("index", []byte(src))
	require.NoError(t, err)
	assert.Equal(t, Label{ID: "intro", Title: "Intro"}, doc.Labels["intro-label"])

	out, err := doc.Render(nil)
	require.NoError(t, err)
	assert.Contains(t, out, `<a class="reference internal" href="#intro"><span class="std std-ref">Intro</span></a>`)
}

func TestInlineMarkup(t *testing.T) {
	cases := map[string]struct {
		src  string
		want string
	}{
		"literal":     {"``x < y``", `<code class="docutils literal notranslate"><span class="pre">x &lt; y</span></code>`},
		"strong":      {"**bold** and *em*", "<strong>bold</strong> and <em>em</em>"},
		"embedded":    {"`Python <https://python.org>`_", `<a class="reference external" href="https://python.org">Python</a>`},
		"func role":   {":func:`~nengo.Ensemble.probe`", `<code class="xref py py-func docutils literal notranslate"><span class="pre">probe()</span></code>`},
		"class role":  {":py:class:`nengo.Ensemble`", `<code class="xref py py-class docutils literal notranslate"><span class="pre">nengo.Ensemble</span></code>`},
		"bare url":    {"see https://nengo.ai.", `see <a class="reference external" href="https://nengo.ai">https://nengo.ai</a>.`},
		"escape":      {`\*not emphasis\*`, "*not emphasis*"},
		"cite":        {"`title`", "<cite>title</cite>"},
		"math":        {":math:`a^2`", `<span class="math notranslate nohighlight">\(a^2\)</span>`},
		"snake case":  {"call my_function now", "call my_function now"},
		"html escape": {"a & b", "a &amp; b"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			out, err := render(t, "index", tc.src+"\n", nil)
			require.NoError(t, err)
			assert.Equal(t, "<p>"+tc.want+"</p>\n", out)
		})
	}
}

func TestNamedTargets(t *testing.T) {
	src := "Python_ rocks, see `Usage`_.\n\n.. _Python: https://www.python.org\n\nUsage\n=====\n"
	out, err := render(t, "index", src, nil)
	require.NoError(t, err)
	assert.Contains(t, out, `<a class="reference external" href="https://www.python.org">Python</a> rocks`)
	assert.Contains(t, out, `<a class="reference internal" href="#usage">Usage</a>`)

	_, err = render(t, "index", "See `nothing here`_.\n", nil)
	var re *RefError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "target", re.Kind)
}

func TestBlocks(t *testing.T) {
	src := strings.Join([]string{
		"Example::",
		"",
		"    import nengo",
		"",
		"- one",
		"- two",
		"",
		"1. first",
		"2. second",
		"",
		":param x: input",
		"",
		"term",
		"   definition",
		"",
		".. note:: Be careful.",
		"",
		".. code-block:: python",
		"",
		"   model = nengo.Network()",
		"",
		">>> 1 + 1",
		"2",
		"",
		"----",
		"",
		".. automodule:: nengo",
		"",
	}, "\n")
	doc, err := Parse("index", []byte(src))
	require.NoError(t, err)
	require.Len(t, doc.Warnings, 1)
	assert.Contains(t, doc.Warnings[0], "automodule")

	out, err := doc.Render(nil)
	require.NoError(t, err)
	for _, want := range []string{
		"<p>Example:</p>",
		`<pre class="literal-block">import nengo</pre>`,
		"<ul class=\"simple\">\n<li>one</li>\n<li>two</li>\n</ul>",
		"<ol class=\"simple\">\n<li>first</li>\n<li>second</li>\n</ol>",
		`<dl class="field-list simple">`,
		"<dt>term</dt><dd>definition</dd>",
		`<div class="admonition note">`,
		`<p class="admonition-title">Note</p>`,
		"<p>Be careful.</p>",
		`<pre class="literal-block highlight-python">model = nengo.Network()</pre>`,
		`<pre class="literal-block highlight-pycon">&gt;&gt;&gt; 1 + 1` + "\n2</pre>",
		`<hr class="docutils" />`,
	} {
		assert.Contains(t, out, want)
	}
}

func TestResolveDocNameAndRelativeHref(t *testing.T) {
	assert.Equal(t, "user_guide/networks", ResolveDocName("user_guide/index", "networks.rst"))
	assert.Equal(t, "api", ResolveDocName("user_guide/index", "/api"))
	assert.Equal(t, "index", ResolveDocName("user_guide/a", "../index"))

	assert.Equal(t, "networks.html", RelativeHref("user_guide/index", "user_guide/networks"))
	assert.Equal(t, "../api.html", RelativeHref("user_guide/index", "api"))
	assert.Equal(t, "user_guide/index.html", RelativeHref("index", "user_guide/index"))
	assert.Equal(t, "../b/c.html", RelativeHref("a/x", "b/c"))
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "getting-started", Slugify("Getting Started!"))
	assert.Equal(t, "creme-brulee", Slugify("Crème brûlée"))
	assert.Equal(t, "section", Slugify("???"))
}

func TestSyntaxErrorIsNotRefError(t *testing.T) {
	_, err := Parse("x", []byte("Too long title\n====\n"))
	var re *RefError
	assert.False(t, errors.As(err, &re))
}
