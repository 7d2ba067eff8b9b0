package gate

// Visibility reports whether a UI handle has entered the viewport. The host
// feeds it intersection events through Observe.
//
// In one-shot mode the gate latches open on the first visible report and
// ignores later hide events, which is what lazy translation wants: once an
// element has been seen its translation stays worth fetching.
type Visibility struct {
	Signal
	oneShot bool
}

// NewVisibility returns a continuous visibility observer, initially hidden.
func NewVisibility() *Visibility {
	return &Visibility{}
}

// NewOneShotVisibility returns an observer that latches open once visible.
func NewOneShotVisibility() *Visibility {
	return &Visibility{oneShot: true}
}

// Observe records an intersection change.
func (v *Visibility) Observe(visible bool) {
	if !visible && v.oneShot && v.Open() {
		return
	}
	v.Set(visible)
}

// Visible reports whether the handle is currently considered visible.
func (v *Visibility) Visible() bool {
	return v.Open()
}
