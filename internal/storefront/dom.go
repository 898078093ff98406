// Package storefront implements the playback and playlist controller that is
// injected into merchant storefronts. It discovers product audio in the page,
// drives a single audio engine and keeps the per-product play icons and the
// sticky player consistent with one source of truth.
//
// The package has no browser dependency. The DOM, the audio engine, durable
// storage, timers and navigation events are interfaces; cmd/playku-inject
// adapts them to the browser and internal/storefront/htmldom adapts them to
// parsed HTML.
package storefront

// Document is the page being decorated.
type Document interface {
	// QueryAll returns every element matching any of the selectors, once
	// each, in document order. Invalid selectors match nothing.
	QueryAll(selectors []string) []Element
}

// Element is a node of the page.
type Element interface {
	// Closest returns the nearest ancestor, starting with the element
	// itself, that matches selector.
	Closest(selector string) (Element, bool)
	// FindFirst returns the first descendant matching selector.
	FindFirst(selector string) (Element, bool)
	Parent() (Element, bool)
	Children() []Element
	Matches(selector string) bool
	Attr(name string) string
	// Connected reports whether the element is still attached to the page.
	Connected() bool
}
