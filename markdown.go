package rubyshd

import (
	"strings"

	blackfriday "github.com/russross/blackfriday/v2"
)

// Markup is the output text format a response body is expressed in.  It is
// implied by the requested file extension and defaults per protocol.
type Markup int

const (
	MarkupHTML Markup = iota
	MarkupGemtext
	MarkupMarkdown
)

func (self Markup) String() string {
	switch self {
	case MarkupGemtext:
		return `Gemtext`
	case MarkupMarkdown:
		return `Markdown`
	default:
		return `HTML`
	}
}

func (self Markup) MediaType() string {
	switch self {
	case MarkupGemtext:
		return ProtocolGemini.MediaType()
	case MarkupMarkdown:
		return `text/markdown; charset=utf-8`
	default:
		return ProtocolHttps.MediaType()
	}
}

func DefaultMarkupForProtocol(protocol Protocol) Markup {
	if protocol == ProtocolGemini {
		return MarkupGemtext
	}

	return MarkupHTML
}

// MarkupForExtension maps a recognized content extension (without dot) to the
// markup it implies.
func MarkupForExtension(ext string) (Markup, bool) {
	switch strings.ToLower(ext) {
	case `md`:
		return MarkupMarkdown, true
	case `gmi`:
		return MarkupGemtext, true
	case `html`, `htm`:
		return MarkupHTML, true
	}

	return MarkupHTML, false
}

// ConvertMarkdown converts a markdown source into the target markup.
// Post-process guard tags protecting inline template calls from the
// converter are stripped from the result.
func ConvertMarkdown(markup Markup, source string) string {
	switch markup {
	case MarkupGemtext:
		return stripPostprocessTags(markdownToGemtext(source))
	case MarkupHTML:
		return stripPostprocessTags(markdownToHTML(source))
	default:
		// raw markdown only needs the guard tags stripping
		return stripPostprocessTags(source)
	}
}

func markdownToHTML(source string) string {
	return string(blackfriday.Run(
		[]byte(source),
		blackfriday.WithExtensions(blackfriday.CommonExtensions),
	))
}

// stripPostprocessTags removes the <?POSTPROCESS ... POSTPROCESS?> tags used
// to keep post-processable template calls from being encoded by conversion.
func stripPostprocessTags(body string) string {
	var replacer = strings.NewReplacer(
		`<?POSTPROCESS `, ``,
		`<?POSTPROCESS`, ``,
		` POSTPROCESS?>`, ``,
		`POSTPROCESS?>`, ``,
	)

	return replacer.Replace(body)
}

// --- markdown -> gemtext ---------------------------------------------------
//
// The converter flattens the markdown AST into clusters of gemtext nodes.
// Inline links are hoisted onto "=>" lines trailing the block they appear in;
// a paragraph that is nothing but a single link collapses into the link line
// itself.  Blocks render separated by blank lines.

type gemtextNodeKind int

const (
	gemtextText gemtextNodeKind = iota
	gemtextPre
	gemtextHeading
	gemtextListItem
	gemtextQuote
	gemtextLink
)

type gemtextNode struct {
	kind  gemtextNodeKind
	level int
	body  string
	to    string
	name  string
}

func (self gemtextNode) renderLine() string {
	switch self.kind {
	case gemtextPre:
		return "```\n" + self.body + "\n```"
	case gemtextHeading:
		return strings.Repeat(`#`, self.level) + ` ` + self.body
	case gemtextListItem:
		return `* ` + self.body
	case gemtextQuote:
		return `> ` + self.body
	case gemtextLink:
		if self.name == `` {
			return `=> ` + self.to
		}

		return `=> ` + self.to + ` ` + self.name
	default:
		return self.body
	}
}

type gemtextState struct {
	clusters       [][]gemtextNode
	pendingContent string
	pendingKind    gemtextNodeKind
	pendingLevel   int
	pendingLinks   []gemtextNode
	linkTextStack  []string
}

func markdownToGemtext(source string) string {
	var parser = blackfriday.New(
		blackfriday.WithExtensions(blackfriday.CommonExtensions),
	)

	var root = parser.Parse([]byte(source))
	var state = new(gemtextState)

	root.Walk(func(node *blackfriday.Node, entering bool) blackfriday.WalkStatus {
		switch node.Type {
		case blackfriday.Heading:
			if entering {
				state.startHeading(node.Level)
			} else {
				state.finishNode()
			}
		case blackfriday.Paragraph:
			// items close their own node; a paragraph exit inside one would
			// otherwise flush the pending list item twice
			if !entering && (node.Parent == nil || node.Parent.Type != blackfriday.Item) {
				state.finishNode()
			}
		case blackfriday.BlockQuote:
			if entering {
				state.startQuote()
			}
		case blackfriday.CodeBlock:
			state.startCodeBlock()
			state.addText(strings.TrimRight(string(node.Literal), "\n"))
			state.finishNode()
		case blackfriday.List:
			if !entering {
				state.finishList()
			}
		case blackfriday.Item:
			if entering {
				state.startListItem()
			} else {
				state.finishNode()
			}
		case blackfriday.Emph:
			state.addText(`_`)
		case blackfriday.Strong:
			state.addText(`**`)
		case blackfriday.Del:
			state.addText(`~~`)
		case blackfriday.Link:
			if entering {
				state.startLink(string(node.LinkData.Destination))
			} else {
				state.finishLink()
			}
		case blackfriday.Image:
			if entering {
				state.startImage(string(node.LinkData.Destination))
			} else {
				state.finishImage()
			}
		case blackfriday.Text:
			state.addText(strings.ReplaceAll(string(node.Literal), "\n", ` `))
		case blackfriday.Code:
			state.addInlineCode(string(node.Literal))
		case blackfriday.HTMLBlock:
			state.addText(strings.TrimSpace(string(node.Literal)))
			state.finishNode()
		case blackfriday.HTMLSpan:
			state.addText(string(node.Literal))
		case blackfriday.Softbreak:
			state.addText(` `)
		case blackfriday.Hardbreak:
			state.finishNode()
		case blackfriday.HorizontalRule:
			state.addRule()
		}

		return blackfriday.GoToNext
	})

	return state.render()
}

func (self *gemtextState) startHeading(level int) {
	if level > 3 {
		level = 3
	}

	self.pendingKind = gemtextHeading
	self.pendingLevel = level
}

func (self *gemtextState) startQuote() {
	self.pendingKind = gemtextQuote
}

func (self *gemtextState) startCodeBlock() {
	self.pendingKind = gemtextPre
}

func (self *gemtextState) startListItem() {
	self.pendingKind = gemtextListItem
}

func (self *gemtextState) startLink(destination string) {
	self.linkTextStack = append(self.linkTextStack, ``)
	self.pendingLinks = append(self.pendingLinks, gemtextNode{
		kind: gemtextLink,
		to:   destination,
		name: destination,
	})
}

func (self *gemtextState) finishLink() {
	if n := len(self.linkTextStack); n > 0 {
		var text = self.linkTextStack[n-1]
		self.linkTextStack = self.linkTextStack[:n-1]

		if l := len(self.pendingLinks); l > 0 {
			self.pendingLinks[l-1].name = text
		}
	}
}

func (self *gemtextState) startImage(destination string) {
	self.linkTextStack = append(self.linkTextStack, ``)
	self.pendingLinks = append(self.pendingLinks, gemtextNode{
		kind: gemtextLink,
		to:   destination,
		name: destination,
	})

	self.pendingContent += `[image: `
}

func (self *gemtextState) finishImage() {
	if n := len(self.linkTextStack); n > 0 {
		var text = self.linkTextStack[n-1]
		self.linkTextStack = self.linkTextStack[:n-1]

		if l := len(self.pendingLinks); l > 0 {
			self.pendingLinks[l-1].name = `[image: ` + text + `]`
		}
	}

	self.pendingContent += `]`
}

func (self *gemtextState) finishList() {
	self.clusters = append(self.clusters, nil)
}

func (self *gemtextState) finishNode() {
	var continueCluster bool

	if self.pendingKind == gemtextListItem {
		if n := len(self.clusters); n > 0 {
			if cluster := self.clusters[n-1]; len(cluster) > 0 && cluster[len(cluster)-1].kind == gemtextListItem {
				continueCluster = true
			}
		}
	}

	if !continueCluster {
		self.clusters = append(self.clusters, nil)
	}

	var node = gemtextNode{
		kind:  self.pendingKind,
		level: self.pendingLevel,
		body:  strings.TrimSpace(self.pendingContent),
	}

	var last = len(self.clusters) - 1
	self.clusters[last] = append(self.clusters[last], node)
	self.clusters[last] = append(self.clusters[last], self.pendingLinks...)

	self.pendingLinks = nil
	self.pendingContent = ``
	self.pendingKind = gemtextText
	self.pendingLevel = 0
}

func (self *gemtextState) addText(text string) {
	for i := range self.linkTextStack {
		self.linkTextStack[i] += text
	}

	self.pendingContent += text
}

func (self *gemtextState) addInlineCode(code string) {
	self.pendingContent += "`" + code + "`"
}

func (self *gemtextState) addRule() {
	self.addText(`-----`)
	self.finishNode()
}

// condenseCluster collapses a paragraph that consisted solely of one link
// into the link line itself.
func condenseCluster(cluster []gemtextNode) []gemtextNode {
	if len(cluster) == 2 &&
		cluster[0].kind == gemtextText &&
		cluster[1].kind == gemtextLink &&
		cluster[0].body == cluster[1].name {
		return cluster[1:]
	}

	return cluster
}

func (self *gemtextState) render() string {
	var blocks []string

	for _, cluster := range self.clusters {
		if len(cluster) == 0 {
			continue
		}

		cluster = condenseCluster(cluster)

		var lines = make([]string, len(cluster))

		for i, node := range cluster {
			lines[i] = node.renderLine()
		}

		blocks = append(blocks, strings.Join(lines, "\n"))
	}

	if len(blocks) == 0 {
		return ``
	}

	return strings.Join(blocks, "\n\n") + "\n"
}
