// Package htmldom adapts parsed HTML to the storefront DOM interfaces. It
// backs the scan diagnostics of playkuctl and lets the storefront be
// exercised against real theme markup without a browser.
package htmldom

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/playku/playku/internal/storefront"
)

// Document is a parsed page. It implements storefront.Document and
// storefront.IconFactory.
type Document struct {
	doc     *goquery.Document
	icons   map[string]*Icon
	queries int
}

func Parse(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Document{doc: doc, icons: make(map[string]*Icon)}, nil
}

func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// QueryAll runs all valid selectors as one group so the result is in
// document order without duplicates.
func (d *Document) QueryAll(selectors []string) []storefront.Element {
	d.queries++

	valid := make([]string, 0, len(selectors))
	for _, sel := range selectors {
		if _, err := cascadia.Compile(sel); err != nil {
			slog.Debug("htmldom: ignoring invalid selector", "selector", sel, "error", err)
			continue
		}
		valid = append(valid, sel)
	}
	if len(valid) == 0 {
		return nil
	}

	found := d.doc.Find(strings.Join(valid, ", "))
	out := make([]storefront.Element, 0, found.Length())
	found.Each(func(_ int, s *goquery.Selection) {
		out = append(out, &Element{sel: s, doc: d})
	})
	return out
}

// Queries is the number of full-document queries run so far.
func (d *Document) Queries() int {
	return d.queries
}

// Find returns the first element matching selector.
func (d *Document) Find(selector string) (*Element, bool) {
	s := d.doc.Find(selector).First()
	if s.Length() == 0 {
		return nil, false
	}
	return &Element{sel: s, doc: d}, true
}

// NewIcon appends a play button to the wrapper.
func (d *Document) NewIcon(wrapper storefront.Element, handle string, style storefront.IconStyle, activate func()) (storefront.Affordance, error) {
	w, ok := wrapper.(*Element)
	if !ok || w.node() == nil {
		return nil, fmt.Errorf("wrapper is not an html element")
	}

	button := &html.Node{
		Type:     html.ElementNode,
		Data:     "button",
		DataAtom: atom.Button,
		Attr: []html.Attribute{
			{Key: "type", Val: "button"},
			{Key: "class", Val: storefront.IconClass},
			{Key: "data-handle", Val: handle},
			{Key: "style", Val: storefront.IconCSS(style)},
		},
	}
	w.node().AppendChild(button)

	icon := &Icon{node: button, root: d.root(), activate: activate}
	icon.SetGlyph(storefront.GlyphPlay)
	d.icons[handle] = icon
	return icon, nil
}

// Click activates the icon of handle the way a shopper would.
func (d *Document) Click(handle string) bool {
	icon, ok := d.icons[handle]
	if !ok || !icon.Connected() || icon.activate == nil {
		return false
	}
	icon.activate()
	return true
}

// Icon returns the icon rendered for handle.
func (d *Document) Icon(handle string) (*Icon, bool) {
	icon, ok := d.icons[handle]
	return icon, ok
}

// HTML renders the current document.
func (d *Document) HTML() (string, error) {
	return d.doc.Html()
}

func (d *Document) root() *html.Node {
	if len(d.doc.Nodes) == 0 {
		return nil
	}
	return d.doc.Nodes[0]
}

// Element is one node of a Document.
type Element struct {
	sel *goquery.Selection
	doc *Document
}

func (e *Element) wrap(s *goquery.Selection) (storefront.Element, bool) {
	if s.Length() == 0 {
		return nil, false
	}
	return &Element{sel: s.First(), doc: e.doc}, true
}

func (e *Element) Closest(selector string) (storefront.Element, bool) {
	return e.wrap(e.sel.Closest(selector))
}

func (e *Element) FindFirst(selector string) (storefront.Element, bool) {
	return e.wrap(e.sel.Find(selector))
}

func (e *Element) Parent() (storefront.Element, bool) {
	return e.wrap(e.sel.Parent())
}

func (e *Element) Children() []storefront.Element {
	children := e.sel.Children()
	out := make([]storefront.Element, 0, children.Length())
	children.Each(func(_ int, s *goquery.Selection) {
		out = append(out, &Element{sel: s, doc: e.doc})
	})
	return out
}

func (e *Element) Matches(selector string) bool {
	return e.sel.Is(selector)
}

func (e *Element) Attr(name string) string {
	return e.sel.AttrOr(name, "")
}

func (e *Element) Connected() bool {
	return attached(e.node(), e.doc.root())
}

// Remove detaches the element, as a theme replacing its product grid would.
func (e *Element) Remove() {
	e.sel.Remove()
}

// AppendHTML adds markup at the end of the element.
func (e *Element) AppendHTML(markup string) {
	e.sel.AppendHtml(markup)
}

// PrependHTML adds markup at the start of the element.
func (e *Element) PrependHTML(markup string) {
	e.sel.PrependHtml(markup)
}

func (e *Element) node() *html.Node {
	if e.sel.Length() == 0 {
		return nil
	}
	return e.sel.Get(0)
}

// Icon is a rendered play button.
type Icon struct {
	node     *html.Node
	root     *html.Node
	activate func()
	glyph    storefront.Glyph
}

func (i *Icon) SetGlyph(g storefront.Glyph) {
	i.glyph = g
	label := "Play"
	text := "▶"
	if g == storefront.GlyphPause {
		label = "Pause"
		text = "❚❚"
	}
	setAttr(i.node, "aria-label", label)
	setAttr(i.node, "data-state", g.String())
	for c := i.node.FirstChild; c != nil; c = i.node.FirstChild {
		i.node.RemoveChild(c)
	}
	i.node.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}

func (i *Icon) Glyph() storefront.Glyph {
	return i.glyph
}

func (i *Icon) Connected() bool {
	return attached(i.node, i.root)
}

func (i *Icon) Remove() {
	if i.node.Parent != nil {
		i.node.Parent.RemoveChild(i.node)
	}
}

func attached(n, root *html.Node) bool {
	if n == nil || root == nil {
		return false
	}
	for p := n; p != nil; p = p.Parent {
		if p == root {
			return true
		}
	}
	return false
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}
