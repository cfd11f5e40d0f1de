package verify

import (
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"

	"git.home.luguber.info/inful/docpipe/internal/foundation/errors"
)

// Link is a reference found in a generated page.
type Link struct {
	URL        string
	Text       string
	Tag        string // a, img, script, link, ...
	Attribute  string // href or src
	IsInternal bool
}

// PageInfo is what verification extracts from one generated page.
type PageInfo struct {
	Title   string // <title> text
	Heading string // first <h1> text
	Links   []Link
}

// ExtractPage parses the HTML file at htmlPath.
func ExtractPage(htmlPath string) (*PageInfo, error) {
	file, err := os.Open(filepath.Clean(htmlPath))
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to open HTML file").
			WithContext("html_path", htmlPath).
			Build()
	}
	defer func() {
		_ = file.Close()
	}()
	return ExtractPageFromReader(file)
}

// ExtractPageFromReader parses one HTML document.
func ExtractPageFromReader(r io.Reader) (*PageInfo, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryValidation, "failed to parse HTML").Build()
	}

	info := &PageInfo{}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if info.Title == "" {
					info.Title = extractText(n)
				}
			case "h1":
				if info.Heading == "" {
					info.Heading = headingText(n)
				}
			}
			extractElementLinks(n, &info.Links)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return info, nil
}

func extractElementLinks(n *html.Node, links *[]Link) {
	attr := ""
	switch n.Data {
	case "a", "link":
		attr = "href"
	case "img", "script", "video", "audio", "source":
		attr = "src"
	default:
		return
	}
	val := getAttr(n, attr)
	if val == "" {
		return
	}
	text := extractText(n)
	switch n.Data {
	case "img":
		text = getAttr(n, "alt")
	case "link":
		text = getAttr(n, "rel")
	}
	*links = append(*links, Link{
		URL:        val,
		Text:       text,
		Tag:        n.Data,
		Attribute:  attr,
		IsInternal: isInternalLink(val),
	})
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func extractText(n *html.Node) string {
	if n.Type == html.TextNode {
		return strings.TrimSpace(n.Data)
	}
	var text strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		text.WriteString(extractText(c))
	}
	return strings.TrimSpace(text.String())
}

// headingText is extractText without permalink markers such as "¶".
func headingText(n *html.Node) string {
	var text strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "a" && strings.Contains(getAttr(c, "class"), "headerlink") {
			continue
		}
		text.WriteString(extractText(c))
	}
	return strings.TrimSpace(text.String())
}

// isInternalLink reports whether a link points into the generated site.
// Fragment-only and non-navigational schemes are not site links.
func isInternalLink(link string) bool {
	for _, prefix := range []string{"#", "mailto:", "tel:", "javascript:", "data:"} {
		if strings.HasPrefix(link, prefix) {
			return false
		}
	}
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	return u.Scheme == "" && u.Host == ""
}
