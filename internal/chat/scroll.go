package chat

// Viewport is the client's last reported scroll geometry, in pixels.
type Viewport struct {
	ScrollTop    float64 `json:"scroll_top"`
	ScrollHeight float64 `json:"scroll_height"`
	ClientHeight float64 `json:"client_height"`
}

// DistanceFromBottom is how far the viewport is scrolled up from the end.
func (v Viewport) DistanceFromBottom() float64 {
	d := v.ScrollHeight - v.ScrollTop - v.ClientHeight
	if d < 0 {
		return 0
	}
	return d
}

// ScrollController decides whether a transcript mutation should scroll
// the view to the newest message. A viewer reading history is left alone
// unless the change is their own.
type ScrollController struct {
	threshold float64
	viewport  Viewport
	forced    bool
}

// NewScrollController uses threshold pixels as the "at bottom" band; zero
// falls back to 100.
func NewScrollController(threshold float64) *ScrollController {
	if threshold <= 0 {
		threshold = 100
	}
	return &ScrollController{threshold: threshold}
}

// Observe records the viewport as it is before the next mutation.
func (c *ScrollController) Observe(v Viewport) {
	c.viewport = v
}

// AtBottom reports whether the observed viewport is within the threshold.
func (c *ScrollController) AtBottom() bool {
	return c.viewport.DistanceFromBottom() <= c.threshold
}

// RequestScroll forces the next decision to scroll.
func (c *ScrollController) RequestScroll() {
	c.forced = true
}

// Decide returns whether to scroll after a mutation. A pending forced
// request is consumed.
func (c *ScrollController) Decide(ownAction bool) bool {
	forced := c.forced
	c.forced = false
	return forced || ownAction || c.AtBottom()
}
