package storefront

import (
	"regexp"
	"strings"
)

const (
	productAnchorSelector = "a[href*='/products/']"

	// DefaultWrapperSelector matches the product card containers of the
	// common Shopify themes.
	DefaultWrapperSelector = ".card-wrapper, .product-card-wrapper, .product-card, .grid__item, .card, .product-grid-item"
)

var productHandlePattern = regexp.MustCompile(`/products/([^/?#]+)`)

// Discovery is one product image resolved to a handle. Bound discoveries
// already carry a live affordance and must not be attached again.
type Discovery struct {
	Handle  string
	Wrapper Element
	Image   string
	Bound   bool
}

// Scanner locates product images in a document.
type Scanner struct {
	WrapperSelector string
	// Bound reports whether a handle already carries a live affordance.
	Bound func(handle string) bool
}

func NewScanner(bound func(handle string) bool) *Scanner {
	return &Scanner{WrapperSelector: DefaultWrapperSelector, Bound: bound}
}

// Scan returns the discovered products in first-appearance order, at most
// one per handle, bound ones included. Images that cannot be resolved to a
// handle are skipped.
func (s *Scanner) Scan(doc Document, selectors []string) []Discovery {
	selectors = cleanSelectors(selectors)
	if doc == nil || len(selectors) == 0 {
		return nil
	}

	seen := make(map[string]bool)
	var found []Discovery
	for _, img := range doc.QueryAll(selectors) {
		wrapper := s.wrapperOf(img)
		if wrapper == nil {
			continue
		}

		handle := resolveHandle(img, wrapper)
		if handle == "" || seen[handle] {
			continue
		}
		seen[handle] = true

		found = append(found, Discovery{
			Handle:  handle,
			Wrapper: wrapper,
			Image:   imageSource(img),
			Bound:   s.Bound != nil && s.Bound(handle),
		})
	}
	return found
}

func (s *Scanner) wrapperOf(img Element) Element {
	selector := s.WrapperSelector
	if selector == "" {
		selector = DefaultWrapperSelector
	}
	if wrapper, ok := img.Closest(selector); ok {
		return wrapper
	}
	if parent, ok := img.Parent(); ok {
		return parent
	}
	return nil
}

func resolveHandle(img, wrapper Element) string {
	if anchor, ok := img.Closest(productAnchorSelector); ok {
		if handle := HandleFromHref(anchor.Attr("href")); handle != "" {
			return handle
		}
	}
	if anchor, ok := wrapper.Closest(productAnchorSelector); ok {
		if handle := HandleFromHref(anchor.Attr("href")); handle != "" {
			return handle
		}
	}
	if anchor, ok := wrapper.FindFirst(productAnchorSelector); ok {
		if handle := HandleFromHref(anchor.Attr("href")); handle != "" {
			return handle
		}
	}
	if parent, ok := img.Parent(); ok {
		for _, sibling := range parent.Children() {
			if !sibling.Matches(productAnchorSelector) {
				continue
			}
			if handle := HandleFromHref(sibling.Attr("href")); handle != "" {
				return handle
			}
		}
	}
	return ""
}

// HandleFromHref extracts the product handle from a storefront link.
func HandleFromHref(href string) string {
	match := productHandlePattern.FindStringSubmatch(href)
	if match == nil {
		return ""
	}
	return match[1]
}

func imageSource(img Element) string {
	src := img.Attr("src")
	if src == "" {
		src = img.Attr("data-src")
	}
	if strings.HasPrefix(src, "//") {
		src = "https:" + src
	}
	return src
}

func cleanSelectors(selectors []string) []string {
	out := make([]string, 0, len(selectors))
	seen := make(map[string]bool, len(selectors))
	for _, sel := range selectors {
		sel = strings.TrimSpace(sel)
		if sel == "" || seen[sel] {
			continue
		}
		seen[sel] = true
		out = append(out, sel)
	}
	return out
}
