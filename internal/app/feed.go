package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// DefaultFeedBuffer is how many state messages a slow subscriber may lag
// behind before messages to it are dropped.
const DefaultFeedBuffer = 8

// Feed fans per-frame state messages out to subscribers. A subscriber that
// falls behind loses messages rather than stalling the frame loop.
type Feed struct {
	mu     sync.Mutex
	subs   map[chan []byte]struct{}
	buffer int
	closed bool
}

// NewFeed creates a Feed whose subscriber channels hold buffer messages.
func NewFeed(buffer int) *Feed {
	if buffer <= 0 {
		buffer = DefaultFeedBuffer
	}
	return &Feed{
		subs:   make(map[chan []byte]struct{}),
		buffer: buffer,
	}
}

// Subscribe returns a message channel and a function that unsubscribes and
// closes it. The channel is also closed when the Feed closes.
func (f *Feed) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, f.buffer)

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	f.subs[ch] = struct{}{}
	f.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			if _, ok := f.subs[ch]; ok {
				delete(f.subs, ch)
				close(ch)
			}
		})
	}
}

// Publish sends msg to every subscriber without blocking and returns how
// many subscribers missed it.
func (f *Feed) Publish(msg []byte) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	dropped := 0
	for ch := range f.subs {
		select {
		case ch <- msg:
		default:
			dropped++
		}
	}
	return dropped
}

// Len returns the number of subscribers.
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Close closes every subscriber channel. Later subscriptions get a closed channel.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.closed = true
	for ch := range f.subs {
		close(ch)
	}
	f.subs = nil
}

// Snapshot is the JSON state message published after every frame.
type Snapshot struct {
	Pinch       bool             `json:"pinch"`
	ScrollSpeed float64          `json:"scroll_speed"`
	Tracking    bool             `json:"tracking"`
	Enabled     bool             `json:"enabled"`
	Width       int              `json:"width"`
	Height      int              `json:"height"`
	Focused     string           `json:"focused,omitempty"`
	Selected    *Selection       `json:"selected,omitempty"`
	Placements  []PlacementState `json:"placements"`
	Timestamp   int64            `json:"timestamp"`
}

// PlacementState is one placement in a Snapshot.
type PlacementState struct {
	IconID  string  `json:"icon_id"`
	Caption string  `json:"caption"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Size    float64 `json:"size"`
	Image   string  `json:"image"` // pending, ready or failed
}

// Snapshot returns the current state message.
func (a *App) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshot()
}

func (a *App) snapshot() Snapshot {
	width, height := a.renderer.Size()
	snap := Snapshot{
		Pinch:       a.state.PinchActive,
		ScrollSpeed: a.state.ScrollSpeed,
		Tracking:    a.state.Tracking,
		Enabled:     a.enabled,
		Width:       width,
		Height:      height,
		Selected:    a.selected,
		Timestamp:   time.Now().UnixMilli(),
	}
	if p, ok := a.carousel.Focused(); ok {
		snap.Focused = p.Caption
	}

	placements := a.carousel.Placements()
	snap.Placements = make([]PlacementState, len(placements))
	for i, p := range placements {
		_, status := a.loader.Get(p.Icon.ImageRef)
		snap.Placements[i] = PlacementState{
			IconID:  p.Icon.ID,
			Caption: p.Caption,
			X:       p.X,
			Y:       p.Y,
			Size:    p.Size,
			Image:   status.String(),
		}
	}
	return snap
}

// publish sends the frame's state to feed subscribers. A selection is
// reported in exactly one message.
func (a *App) publish() {
	if a.feed.Len() == 0 {
		a.selected = nil
		return
	}

	msg, err := json.Marshal(a.snapshot())
	a.selected = nil
	if err != nil {
		slog.Error("failed to encode state", "err", err)
		return
	}
	a.feed.Publish(msg)
}

// FrameJPEG encodes the latest rendered frame.
func (a *App) FrameJPEG() ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.frames == 0 {
		return nil, ErrNoFrame
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *a.renderer.Frame())
	if err != nil {
		return nil, fmt.Errorf("encoding frame: %w", err)
	}
	defer buf.Close()

	return bytes.Clone(buf.GetBytes()), nil
}
