// Package rst renders a practical subset of reStructuredText to HTML.
//
// Supported block markup: section titles (underline and overline styles),
// paragraphs, bullet, enumerated, definition and field lists, literal blocks
// ("::" and doctest), block quotes, transitions, comments, hyperlink targets
// and the directives toctree, code-block, image, figure, raw (html) and the
// admonitions. Supported inline markup: emphasis, strong, inline literals,
// hyperlink references, standalone URLs and the :doc:, :ref: and Python
// cross-reference roles.
//
// Rendering happens in two passes. Parse reads every document and collects
// titles, labels and toctrees; Render then resolves cross references through
// a Resolver that knows the whole document set. Unresolvable :doc: and :ref:
// targets and toctree entries are errors.
package rst
