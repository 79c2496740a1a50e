package carousel

import "math"

// Nearest returns the index of the placement closest to the viewport center
// and its distance. It returns -1 and +Inf when there are no placements.
func (c *Carousel) Nearest() (int, float64) {
	best, bestDist := -1, math.Inf(1)
	for i := range c.placements {
		if d := c.DistanceToCenter(c.placements[i].X); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, bestDist
}

// Focused returns the nearest placement if it lies inside the focus zone.
func (c *Carousel) Focused() (Placement, bool) {
	i, d := c.Nearest()
	if i < 0 || !c.InFocus(d) {
		return Placement{}, false
	}
	return c.placements[i], true
}

// InFocus reports whether a placement d pixels from center is in the focus zone.
func (c *Carousel) InFocus(d float64) bool {
	return d < c.config.FocusRadius
}

// HaloAlpha returns the halo opacity for a placement d pixels from center:
// 1 at center, fading linearly to 0 at the focus radius and beyond.
func (c *Carousel) HaloAlpha(d float64) float64 {
	return HaloAlpha(d, c.config.FocusRadius)
}

// HaloAlpha is the halo opacity at distance d for a focus zone of the given radius.
func HaloAlpha(d, radius float64) float64 {
	if d >= radius {
		return 0
	}
	return 1 - d/radius
}
