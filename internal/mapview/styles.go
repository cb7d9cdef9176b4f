package mapview

import "sync"

// Stylesheet is an external style dependency of the map engine.
type Stylesheet struct {
	ID   string `json:"id"`
	Href string `json:"href"`
}

// DefaultStylesheet is the engine stylesheet every viewport needs.
var DefaultStylesheet = Stylesheet{ID: "map-engine-css", Href: "https://unpkg.com/leaflet@1.9.4/dist/leaflet.css"}

// StyleRegistry records stylesheets that have been injected into the page.
// It is shared by all sessions of a page.
type StyleRegistry struct {
	mu    sync.Mutex
	order []Stylesheet
	seen  map[string]struct{}
}

func NewStyleRegistry() *StyleRegistry {
	return &StyleRegistry{seen: make(map[string]struct{})}
}

// Ensure registers s unless a stylesheet with the same ID is already
// present. It reports whether s was inserted.
func (r *StyleRegistry) Ensure(s Stylesheet) bool {
	if r == nil || s.ID == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seen == nil {
		r.seen = make(map[string]struct{})
	}
	if _, ok := r.seen[s.ID]; ok {
		return false
	}
	r.seen[s.ID] = struct{}{}
	r.order = append(r.order, s)
	return true
}

// List returns the registered stylesheets in insertion order.
func (r *StyleRegistry) List() []Stylesheet {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Stylesheet, len(r.order))
	copy(out, r.order)
	return out
}
