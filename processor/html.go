package processor

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/ZaguanLabs/gotlive"
)

// DefaultAttributes lists attributes whose values are user-visible text.
var DefaultAttributes = []string{"title", "alt", "placeholder", "aria-label"}

// HTMLLocalizer localizes server-rendered HTML through an engine.
type HTMLLocalizer struct {
	resolver    Resolver
	ignoredTags map[string]bool
	attributes  map[string]bool
	priority    gotlive.Priority
}

// HTMLOption configures an HTMLLocalizer.
type HTMLOption func(*HTMLLocalizer)

// WithIgnoredTags replaces the set of tags whose content is left alone.
func WithIgnoredTags(tags ...string) HTMLOption {
	return func(l *HTMLLocalizer) {
		l.ignoredTags = make(map[string]bool, len(tags))
		for _, tag := range tags {
			l.ignoredTags[strings.ToLower(tag)] = true
		}
	}
}

// WithAttributes replaces the set of translated attributes. Pass none to
// translate text nodes only.
func WithAttributes(attrs ...string) HTMLOption {
	return func(l *HTMLLocalizer) {
		l.attributes = make(map[string]bool, len(attrs))
		for _, a := range attrs {
			l.attributes[strings.ToLower(a)] = true
		}
	}
}

// WithHTMLPriority sets the queue priority of page strings. Default:
// gotlive.PriorityVisible.
func WithHTMLPriority(p gotlive.Priority) HTMLOption {
	return func(l *HTMLLocalizer) {
		l.priority = p
	}
}

// NewHTMLLocalizer creates a localizer resolving through r.
func NewHTMLLocalizer(r Resolver, opts ...HTMLOption) *HTMLLocalizer {
	l := &HTMLLocalizer{
		resolver:    r,
		ignoredTags: IgnoredTags,
		priority:    gotlive.PriorityVisible,
	}
	WithAttributes(DefaultAttributes...)(l)
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// parsedHTML holds the parsed document.
type parsedHTML struct {
	doc      *goquery.Document
	document bool // input was a full document rather than a fragment
}

// Extract parses content and returns its unique translatable strings in
// document order.
func (l *HTMLLocalizer) Extract(content string) (*parsedHTML, []TextNode, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, nil, &Error{Message: "failed to parse HTML", Cause: err, ContentType: "html"}
	}

	var nodes []TextNode
	index := make(map[string]int)
	add := func(text, context string) {
		if i, ok := index[text]; ok {
			nodes[i].Count++
			return
		}
		index[text] = len(nodes)
		nodes = append(nodes, TextNode{Text: text, Context: context, Count: 1})
	}

	l.walk(doc, func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if trimmed := strings.TrimSpace(n.Data); trimmed != "" {
				add(trimmed, buildContext(n))
			}
		case html.ElementNode:
			for _, attr := range n.Attr {
				if !l.attributes[strings.ToLower(attr.Key)] {
					continue
				}
				if trimmed := strings.TrimSpace(attr.Val); trimmed != "" {
					add(trimmed, fmt.Sprintf("%s attribute of <%s>", attr.Key, n.Data))
				}
			}
		}
	})

	parsed := &parsedHTML{
		doc:      doc,
		document: strings.Contains(strings.ToLower(content), "<html"),
	}
	return parsed, nodes, nil
}

// Apply writes translations (keyed by trimmed source text) into the parsed
// document and renders it. For full documents the <html> element gets lang
// and dir attributes for lang.
func (l *HTMLLocalizer) Apply(parsed *parsedHTML, translations map[string]string, lang string) (string, error) {
	l.walk(parsed.doc, func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if translated, ok := translations[strings.TrimSpace(n.Data)]; ok {
				n.Data = preserveWhitespace(n.Data, translated)
			}
		case html.ElementNode:
			for i, attr := range n.Attr {
				if !l.attributes[strings.ToLower(attr.Key)] {
					continue
				}
				if translated, ok := translations[strings.TrimSpace(attr.Val)]; ok {
					n.Attr[i].Val = preserveWhitespace(attr.Val, translated)
				}
			}
		}
	})

	if !parsed.document {
		out, err := parsed.doc.Find("body").Html()
		if err != nil {
			return "", &Error{Message: "failed to serialize HTML", Cause: err, ContentType: "html"}
		}
		return out, nil
	}

	if lang != "" {
		root := parsed.doc.Find("html").First()
		root.SetAttr("lang", lang)
		root.SetAttr("dir", gotlive.Direction(lang))
	}

	out, err := parsed.doc.Html()
	if err != nil {
		return "", &Error{Message: "failed to serialize HTML", Cause: err, ContentType: "html"}
	}
	return out, nil
}

// Localize translates content into lang (empty means the engine's current
// language). Strings that could not be translated keep their source text.
// It blocks until every string has settled or ctx is done.
func (l *HTMLLocalizer) Localize(ctx context.Context, content, lang string) (string, *Report, error) {
	parsed, nodes, err := l.Extract(content)
	if err != nil {
		return "", nil, err
	}

	translations, report, err := resolveAll(ctx, l.resolver, nodes, lang, l.priority)
	if err != nil {
		return "", report, err
	}

	out, err := l.Apply(parsed, translations, report.Lang)
	return out, report, err
}

// ContentType returns "html".
func (l *HTMLLocalizer) ContentType() string {
	return "html"
}

// walk visits every node outside ignored and data-no-translate subtrees.
func (l *HTMLLocalizer) walk(doc *goquery.Document, visit func(*html.Node)) {
	var rec func(*html.Node)
	rec = func(n *html.Node) {
		if n.Type == html.ElementNode {
			// Skip ignored tags
			if l.ignoredTags[strings.ToLower(n.Data)] {
				return
			}

			// Skip elements with data-no-translate or translate="no"
			for _, attr := range n.Attr {
				if attr.Key == "data-no-translate" || (attr.Key == "translate" && attr.Val == "no") {
					return
				}
			}
		}

		visit(n)

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			rec(c)
		}
	}

	for _, n := range doc.Nodes {
		rec(n)
	}
}

// buildContext describes where a text node sits, for logs and reports.
func buildContext(n *html.Node) string {
	if n.Parent == nil || n.Parent.Type != html.ElementNode {
		return ""
	}

	var parts []string
	parent := n.Parent
	tag := parent.Data

	// Get class or id if available
	var classAttr, idAttr string
	for _, attr := range parent.Attr {
		if attr.Key == "class" {
			classAttr = attr.Val
		} else if attr.Key == "id" {
			idAttr = attr.Val
		}
	}

	if classAttr != "" {
		parts = append(parts, fmt.Sprintf("in <%s class=\"%s\">", tag, classAttr))
	} else if idAttr != "" {
		parts = append(parts, fmt.Sprintf("in <%s id=\"%s\">", tag, idAttr))
	} else {
		parts = append(parts, fmt.Sprintf("in <%s>", tag))
	}

	// Get ancestor path (up to 3 levels)
	var ancestors []string
	ancestor := parent.Parent
	for i := 0; i < 3 && ancestor != nil; i++ {
		if ancestor.Type == html.ElementNode {
			name := ancestor.Data
			if name != "html" && name != "body" {
				ancestors = append(ancestors, name)
			}
		}
		ancestor = ancestor.Parent
	}
	if len(ancestors) > 0 {
		// Reverse to show outer to inner
		for i, j := 0, len(ancestors)-1; i < j; i, j = i+1, j-1 {
			ancestors[i], ancestors[j] = ancestors[j], ancestors[i]
		}
		parts = append(parts, fmt.Sprintf("inside: %s", strings.Join(ancestors, " > ")))
	}

	return strings.Join(parts, " | ")
}

// preserveWhitespace preserves the original leading/trailing whitespace.
func preserveWhitespace(original, translated string) string {
	leadingLen := len(original) - len(strings.TrimLeft(original, " \t\n\r"))
	leading := original[:leadingLen]

	trailingLen := len(original) - len(strings.TrimRight(original, " \t\n\r"))
	trailing := ""
	if trailingLen > 0 {
		trailing = original[len(original)-trailingLen:]
	}

	return leading + translated + trailing
}
