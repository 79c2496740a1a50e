package carousel

import "math"

// Config describes the belt layout and the focus-lens curve. A placement's
// size at horizontal distance d from center is
// clamp(BaseSize + SizeBias - d/Falloff, MinSize, MaxSize).
type Config struct {
	Count       int     // number of placements
	Gap         float64 // spacing between placements after a reset
	StartRatio  float64 // first placement's x as a fraction of the width
	InitialSize float64 // size before the first update
	BaseSize    float64
	SizeBias    float64
	Falloff     float64 // must exceed 1
	MinSize     float64
	MaxSize     float64
	FocusRadius float64 // half-width of the focus zone around center
}

// DefaultConfig returns the stock six-icon layout.
func DefaultConfig() Config {
	return Config{
		Count:       6,
		Gap:         400,
		StartRatio:  0.25,
		InitialSize: 100,
		BaseSize:    200,
		SizeBias:    100,
		Falloff:     10,
		MinSize:     50,
		MaxSize:     300,
		FocusRadius: 100,
	}
}

// Placement is one icon's current position and size on the belt.
type Placement struct {
	X, Y    float64
	Size    float64
	Icon    *Icon
	Caption string
}

// Carousel is the belt of placements. It is not safe for concurrent use;
// the frame driver serializes access.
type Carousel struct {
	config     Config
	registry   *Registry
	width      float64
	height     float64
	left       float64
	right      float64
	placements []Placement
}

// New creates a Carousel laid out for a width x height viewport.
func New(config Config, registry *Registry, width, height float64) *Carousel {
	c := &Carousel{
		config:   config,
		registry: registry,
	}
	c.Reset(width, height)
	return c
}

// Reset rebuilds every placement for a new viewport size. Nothing carries
// over from the previous layout.
func (c *Carousel) Reset(width, height float64) {
	c.width = width
	c.height = height
	c.left, c.right = c.edges()

	placements := make([]Placement, c.config.Count)
	for i := range placements {
		icon := c.registry.At(i)
		placements[i] = Placement{
			X:       float64(i)*c.config.Gap + width*c.config.StartRatio,
			Y:       height / 2,
			Size:    c.config.InitialSize,
			Icon:    icon,
			Caption: icon.Caption,
		}
	}
	c.placements = placements
}

// SetRegistry swaps the icon registry and resets the layout.
func (c *Carousel) SetRegistry(registry *Registry) {
	c.registry = registry
	c.Reset(c.width, c.height)
}

// Registry returns the current icon registry.
func (c *Carousel) Registry() *Registry {
	return c.registry
}

// Update advances every placement by speed, wraps placements that left the
// belt to the opposite edge, and recomputes sizes from the new positions.
func (c *Carousel) Update(speed float64) {
	for i := range c.placements {
		p := &c.placements[i]

		p.X += speed
		switch {
		case p.X < -c.SizeAt(p.X):
			p.X = c.right
		case p.X > c.width+c.SizeAt(p.X):
			p.X = c.left
		}

		p.Size = c.SizeAt(p.X)
	}
}

// SizeAt returns the focus-lens size for a placement centered at x.
func (c *Carousel) SizeAt(x float64) float64 {
	size := c.config.BaseSize + (c.config.SizeBias - c.DistanceToCenter(x)/c.config.Falloff)
	return math.Max(c.config.MinSize, math.Min(c.config.MaxSize, size))
}

// DistanceToCenter returns the horizontal distance from x to the viewport center.
func (c *Carousel) DistanceToCenter(x float64) float64 {
	return math.Abs(c.width/2 - x)
}

// Edges returns the belt's wrap positions.
func (c *Carousel) Edges() (left, right float64) {
	return c.left, c.right
}

// edges solves left = -SizeAt(left) and right = width + SizeAt(right). A
// placement wrapped onto an edge then sits exactly one size outside the
// viewport whatever its recomputed size. SizeAt changes by at most
// 1/Falloff per pixel, so the iteration contracts.
//
// This departs from wrapping to -size and width+size of the size the
// placement had before the move: a placement leaving at the far edge would
// then land at -100 on the first frame and grow past the belt once its size
// is recomputed. The fixed points keep every placement inside the belt at
// the cost of a different landing spot (about -218 on a 1200px viewport).
func (c *Carousel) edges() (left, right float64) {
	const maxIter = 200

	left = -c.SizeAt(0)
	for i := 0; i < maxIter; i++ {
		next := -c.SizeAt(left)
		if next == left {
			break
		}
		left = next
	}
	// Settle the last rounding error on the inside of the belt.
	for left < -c.SizeAt(left) {
		left = math.Nextafter(left, math.Inf(1))
	}

	right = c.width + c.SizeAt(c.width)
	for i := 0; i < maxIter; i++ {
		next := c.width + c.SizeAt(right)
		if next == right {
			break
		}
		right = next
	}
	for right > c.width+c.SizeAt(right) {
		right = math.Nextafter(right, math.Inf(-1))
	}

	return left, right
}

// Placements returns a copy of the current placements.
func (c *Carousel) Placements() []Placement {
	out := make([]Placement, len(c.placements))
	copy(out, c.placements)
	return out
}

// Len returns the number of placements.
func (c *Carousel) Len() int {
	return len(c.placements)
}

// Size returns the viewport dimensions.
func (c *Carousel) Size() (width, height float64) {
	return c.width, c.height
}

// FocusRadius returns the half-width of the focus zone.
func (c *Carousel) FocusRadius() float64 {
	return c.config.FocusRadius
}
