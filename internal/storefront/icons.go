package storefront

import (
	"fmt"
	"log/slog"
	"strings"
)

// IconClass marks every play affordance. Merchants target it from theme CSS.
const IconClass = "playku-play-icon"

// Position is where the affordance sits over the product image.
type Position string

const (
	PositionCenter      Position = "center"
	PositionTopLeft     Position = "top-left"
	PositionTopRight    Position = "top-right"
	PositionBottomLeft  Position = "bottom-left"
	PositionBottomRight Position = "bottom-right"
)

// ParsePosition falls back to bottom-left for unknown values.
func ParsePosition(s string) Position {
	switch p := Position(s); p {
	case PositionCenter, PositionTopLeft, PositionTopRight, PositionBottomLeft, PositionBottomRight:
		return p
	default:
		return PositionBottomLeft
	}
}

// Placement is the CSS offset of an affordance inside its wrapper. Empty
// fields are left unset.
type Placement struct {
	Top       string
	Right     string
	Bottom    string
	Left      string
	Transform string
}

const iconInset = "8px"

func PlacementFor(p Position) Placement {
	switch p {
	case PositionCenter:
		return Placement{Top: "50%", Left: "50%", Transform: "translate(-50%, -50%)"}
	case PositionTopLeft:
		return Placement{Top: iconInset, Left: iconInset}
	case PositionTopRight:
		return Placement{Top: iconInset, Right: iconInset}
	case PositionBottomRight:
		return Placement{Bottom: iconInset, Right: iconInset}
	default:
		return Placement{Bottom: iconInset, Left: iconInset}
	}
}

type Glyph int

const (
	GlyphPlay Glyph = iota
	GlyphPause
)

func (g Glyph) String() string {
	if g == GlyphPause {
		return "pause"
	}
	return "play"
}

// IconStyle is the merchant's configuration of the on-image affordance.
type IconStyle struct {
	Position   Position
	Size       int
	Color      string
	Background string
}

// Affordance is one play/pause control rendered over a product image.
type Affordance interface {
	SetGlyph(Glyph)
	Connected() bool
	Remove()
}

// IconFactory renders affordances into the page.
type IconFactory interface {
	NewIcon(wrapper Element, handle string, style IconStyle, activate func()) (Affordance, error)
}

type binding struct {
	handle     string
	affordance Affordance
	glyph      Glyph
}

// Registry keeps one affordance per handle and mirrors the controller's
// state onto them. It is never a source of truth for playback.
type Registry struct {
	factory  IconFactory
	style    IconStyle
	activate func(handle string)

	bindings map[string]*binding
	order    []string
}

func NewRegistry(factory IconFactory, style IconStyle, activate func(handle string)) *Registry {
	return &Registry{
		factory:  factory,
		style:    style,
		activate: activate,
		bindings: make(map[string]*binding),
	}
}

func (r *Registry) SetStyle(style IconStyle) {
	r.style = style
}

// Attach renders the affordance for handle over wrapper. A handle that
// already has a live affordance is left alone.
func (r *Registry) Attach(handle string, wrapper Element) error {
	if r.Bound(handle) {
		return nil
	}
	if r.factory == nil {
		return fmt.Errorf("attach %s: no icon factory", handle)
	}

	activate := func() {
		if r.activate != nil {
			r.activate(handle)
		}
	}
	affordance, err := r.factory.NewIcon(wrapper, handle, r.style, activate)
	if err != nil {
		return fmt.Errorf("attach %s: %w", handle, err)
	}

	r.bindings[handle] = &binding{handle: handle, affordance: affordance, glyph: GlyphPlay}
	r.order = append(r.order, handle)
	return nil
}

// Bound reports whether handle has a live affordance. A detached one is
// dropped on the way.
func (r *Registry) Bound(handle string) bool {
	b, ok := r.bindings[handle]
	if !ok {
		return false
	}
	if !r.alive(b) {
		r.drop(handle)
		return false
	}
	return true
}

// Refresh shows pause on the current handle's affordance while playing and
// play everywhere else.
func (r *Registry) Refresh(currentHandle string, isPlaying bool) {
	for _, handle := range append([]string(nil), r.order...) {
		b := r.bindings[handle]
		if !r.alive(b) {
			r.drop(handle)
			continue
		}
		glyph := GlyphPlay
		if isPlaying && handle == currentHandle {
			glyph = GlyphPause
		}
		if glyph == b.glyph {
			continue
		}
		b.glyph = glyph
		contain("set glyph", func() { b.affordance.SetGlyph(glyph) })
	}
}

// Prune drops every detached binding.
func (r *Registry) Prune() {
	for _, handle := range append([]string(nil), r.order...) {
		if !r.alive(r.bindings[handle]) {
			r.drop(handle)
		}
	}
}

// Handles lists the bound handles in attach order.
func (r *Registry) Handles() []string {
	return append([]string(nil), r.order...)
}

func (r *Registry) Len() int {
	return len(r.order)
}

// Clear removes every affordance from the page.
func (r *Registry) Clear() {
	for _, handle := range r.order {
		if b := r.bindings[handle]; b != nil {
			contain("remove icon", b.affordance.Remove)
		}
	}
	r.bindings = make(map[string]*binding)
	r.order = nil
}

// OnSnapshot is the controller subscription of the registry.
func (r *Registry) OnSnapshot(s Snapshot) {
	r.Refresh(s.Handle(), s.IsPlaying)
}

func (r *Registry) alive(b *binding) (ok bool) {
	if b == nil || b.affordance == nil {
		return false
	}
	defer func() {
		if rec := recover(); rec != nil {
			slog.Debug("storefront: liveness check failed", "handle", b.handle, "panic", rec)
			ok = false
		}
	}()
	return b.affordance.Connected()
}

// drop forgets handle and releases its affordance. Remove is safe on a node
// that already left the page.
func (r *Registry) drop(handle string) {
	if b := r.bindings[handle]; b != nil && b.affordance != nil {
		contain("remove icon", b.affordance.Remove)
	}
	delete(r.bindings, handle)
	for i, h := range r.order {
		if h == handle {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// IconCSS renders the inline style of an affordance.
func IconCSS(style IconStyle) string {
	size := style.Size
	if size <= 0 {
		size = 32
	}
	color := style.Color
	if color == "" {
		color = "#ffffff"
	}
	background := style.Background
	if background == "" {
		background = "rgba(0,0,0,0.5)"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "position:absolute;z-index:10;width:%dpx;height:%dpx;", size, size)
	b.WriteString("display:flex;align-items:center;justify-content:center;border:none;border-radius:50%;cursor:pointer;")
	fmt.Fprintf(&b, "color:%s;background:%s;", color, background)
	p := PlacementFor(style.Position)
	for _, prop := range []struct{ name, value string }{
		{"top", p.Top}, {"right", p.Right}, {"bottom", p.Bottom}, {"left", p.Left}, {"transform", p.Transform},
	} {
		if prop.value != "" {
			fmt.Fprintf(&b, "%s:%s;", prop.name, prop.value)
		}
	}
	return b.String()
}
