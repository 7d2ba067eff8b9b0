package processor

import (
	"context"
	"go/ast"
	"go/parser"
	"go/printer"
	"go/token"
	"strconv"
	"strings"
	"unicode"

	"github.com/ZaguanLabs/gotlive"
)

// GoLocalizer finds user-facing string literals (and optionally comments) in
// Go source. It is used to warm the cache with an application's UI strings
// and to produce localized copies of message tables.
type GoLocalizer struct {
	resolver          Resolver
	translateComments bool
	translateStrings  bool
	priority          gotlive.Priority
}

// GoOption configures a GoLocalizer.
type GoOption func(*GoLocalizer)

// WithComments enables/disables comment translation.
func WithComments(enabled bool) GoOption {
	return func(p *GoLocalizer) {
		p.translateComments = enabled
	}
}

// WithStrings enables/disables string literal translation.
func WithStrings(enabled bool) GoOption {
	return func(p *GoLocalizer) {
		p.translateStrings = enabled
	}
}

// WithGoPriority sets the queue priority of extracted strings. Default:
// gotlive.PriorityPrefetch.
func WithGoPriority(prio gotlive.Priority) GoOption {
	return func(p *GoLocalizer) {
		p.priority = prio
	}
}

// NewGoLocalizer creates a Go source localizer. Comments are off by default.
func NewGoLocalizer(r Resolver, opts ...GoOption) *GoLocalizer {
	p := &GoLocalizer{
		resolver:         r,
		translateStrings: true,
		priority:         gotlive.PriorityPrefetch,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// parsedGo holds the parsed Go AST and file set.
type parsedGo struct {
	fset *token.FileSet
	file *ast.File
}

// Extract parses Go source and returns its unique translatable strings.
func (p *GoLocalizer) Extract(content string) (*parsedGo, []TextNode, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "source.go", content, parser.ParseComments)
	if err != nil {
		return nil, nil, &Error{Message: "failed to parse Go source", Cause: err, ContentType: "go"}
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

	if p.translateComments {
		for _, cg := range file.Comments {
			for _, c := range cg.List {
				if text := extractCommentText(c.Text); text != "" {
					add(text, "comment at "+fset.Position(c.Pos()).String())
				}
			}
		}
	}

	if p.translateStrings {
		inspectStrings(file, func(lit *ast.BasicLit, raw string) {
			add(strings.TrimSpace(raw), "string at "+fset.Position(lit.Pos()).String())
		})
	}

	return &parsedGo{fset: fset, file: file}, nodes, nil
}

// Apply replaces translated strings and comments and prints the source.
func (p *GoLocalizer) Apply(parsed *parsedGo, translations map[string]string) (string, error) {
	if p.translateComments {
		for _, cg := range parsed.file.Comments {
			for _, c := range cg.List {
				translated, ok := translations[extractCommentText(c.Text)]
				if !ok {
					continue
				}
				if strings.HasPrefix(c.Text, "//") {
					c.Text = "// " + translated
				} else {
					c.Text = "/* " + translated + " */"
				}
			}
		}
	}

	if p.translateStrings {
		inspectStrings(parsed.file, func(lit *ast.BasicLit, raw string) {
			translated, ok := translations[strings.TrimSpace(raw)]
			if !ok {
				return
			}
			translated = preserveWhitespace(raw, translated)
			if lit.Value[0] == '`' && !strings.Contains(translated, "`") {
				lit.Value = "`" + translated + "`"
			} else {
				lit.Value = strconv.Quote(translated)
			}
		})
	}

	var buf strings.Builder
	if err := printer.Fprint(&buf, parsed.fset, parsed.file); err != nil {
		return "", &Error{Message: "failed to print Go source", Cause: err, ContentType: "go"}
	}
	return buf.String(), nil
}

// Localize translates the source into lang (empty means the engine's current
// language).
func (p *GoLocalizer) Localize(ctx context.Context, content, lang string) (string, *Report, error) {
	parsed, nodes, err := p.Extract(content)
	if err != nil {
		return "", nil, err
	}

	translations, report, err := resolveAll(ctx, p.resolver, nodes, lang, p.priority)
	if err != nil {
		return "", report, err
	}

	out, err := p.Apply(parsed, translations)
	return out, report, err
}

// ContentType returns "go".
func (p *GoLocalizer) ContentType() string {
	return "go"
}

// inspectStrings calls fn with the unquoted value of every translatable
// string literal outside import declarations and struct tags.
func inspectStrings(file *ast.File, fn func(lit *ast.BasicLit, raw string)) {
	ast.Inspect(file, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.ImportSpec:
			return false
		case *ast.Field:
			// Struct tags are string literals too.
			return false
		case *ast.BasicLit:
			if n.Kind != token.STRING {
				return true
			}
			raw, err := strconv.Unquote(n.Value)
			if err != nil {
				return true
			}
			if isTranslatableString(strings.TrimSpace(raw)) {
				fn(n, raw)
			}
		}
		return true
	})
}

// extractCommentText extracts the text content from a comment.
func extractCommentText(comment string) string {
	if strings.HasPrefix(comment, "//") {
		return strings.TrimSpace(comment[2:])
	}
	if strings.HasPrefix(comment, "/*") && strings.HasSuffix(comment, "*/") {
		return strings.TrimSpace(comment[2 : len(comment)-2])
	}
	return ""
}

// isTranslatableString checks if a string looks like UI text.
func isTranslatableString(s string) bool {
	// Skip empty or very short strings
	if len(s) < 2 {
		return false
	}

	// Skip strings that look like identifiers or paths
	if strings.Contains(s, "/") && !strings.Contains(s, " ") {
		return false
	}

	// Skip strings that look like format specifiers
	if strings.HasPrefix(s, "%") && len(s) < 5 {
		return false
	}

	// Skip strings that are all uppercase (likely constants)
	if s == strings.ToUpper(s) && !strings.Contains(s, " ") {
		return false
	}

	// Must contain at least one letter
	return strings.IndexFunc(s, unicode.IsLetter) >= 0
}
