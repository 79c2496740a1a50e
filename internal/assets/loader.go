// Package assets loads icon images in the background so the frame loop
// never waits on the network or the disk.
package assets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Status is the load state of one image reference.
type Status int

const (
	// Pending means the image has been requested but is not decoded yet.
	Pending Status = iota
	// Ready means the image is decoded and can be drawn.
	Ready
	// Failed means fetching or decoding failed. It is terminal.
	Failed
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Default loader settings.
const (
	DefaultWorkers   = 2
	DefaultQueueSize = 64
	DefaultTimeout   = 10 * time.Second
)

// ErrLoaderClosed is returned by Request after Close.
var ErrLoaderClosed = errors.New("asset loader is closed")

// Image is a decoded icon. Mask is empty for opaque images.
type Image struct {
	BGR  gocv.Mat
	Mask gocv.Mat
}

// HasMask reports whether the image carries an alpha mask.
func (i *Image) HasMask() bool {
	return !i.Mask.Empty()
}

// Close releases both Mats.
func (i *Image) Close() {
	i.BGR.Close()
	i.Mask.Close()
}

// Options configures a Loader.
type Options struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
	// Fetch overrides how raw bytes are obtained for a reference.
	Fetch FetchFunc
}

type entry struct {
	status Status
	image  *Image
	err    error
}

type result struct {
	ref   string
	image *Image
	err   error
}

// Loader fetches and decodes images on a pool of worker goroutines. Results
// are adopted by Poll, which the frame loop calls once per frame; Get and
// Poll must be called from the same goroutine as the drawing code.
type Loader struct {
	fetch   FetchFunc
	timeout time.Duration

	jobs    chan string
	results chan result

	mu      sync.Mutex
	entries map[string]*entry
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewLoader starts a Loader's workers.
func NewLoader(opts Options) *Loader {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Fetch == nil {
		opts.Fetch = NewFetcher(opts.Timeout).Fetch
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &Loader{
		fetch:   opts.Fetch,
		timeout: opts.Timeout,
		jobs:    make(chan string, opts.QueueSize),
		results: make(chan result, opts.QueueSize),
		entries: make(map[string]*entry),
		ctx:     ctx,
		cancel:  cancel,
	}

	for i := 0; i < opts.Workers; i++ {
		l.wg.Add(1)
		go l.worker()
	}
	return l
}

// Request queues refs that are not already known. A ref whose job does not
// fit in the queue stays unknown and is queued again by a later Request.
func (l *Loader) Request(refs ...string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrLoaderClosed
	}

	for _, ref := range refs {
		if _, ok := l.entries[ref]; ok {
			continue
		}
		select {
		case l.jobs <- ref:
			l.entries[ref] = &entry{status: Pending}
		default:
			// Queue is full, try again next frame.
		}
	}
	return nil
}

// Poll adopts every finished job without blocking and returns how many
// were adopted.
func (l *Loader) Poll() int {
	n := 0
	for {
		select {
		case res := <-l.results:
			l.adopt(res)
			n++
		default:
			return n
		}
	}
}

func (l *Loader) adopt(res result) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[res.ref]
	if !ok || l.closed {
		// Forgotten while in flight.
		if res.image != nil {
			res.image.Close()
		}
		return
	}

	if res.err != nil {
		e.status = Failed
		e.err = res.err
		slog.Warn("icon image failed to load", "ref", res.ref, "error", res.err)
		return
	}
	e.status = Ready
	e.image = res.image
}

// Get returns the decoded image for ref and its status. The image is nil
// unless the status is Ready. Unknown refs report Pending.
func (l *Loader) Get(ref string) (*Image, Status) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[ref]
	if !ok {
		return nil, Pending
	}
	return e.image, e.status
}

// Err returns the failure recorded for ref, if any.
func (l *Loader) Err(ref string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.entries[ref]; ok {
		return e.err
	}
	return nil
}

// Retain forgets every ref not in keep and releases its image. Jobs still in
// flight for a forgotten ref are discarded when they finish.
func (l *Loader) Retain(keep []string) {
	wanted := make(map[string]bool, len(keep))
	for _, ref := range keep {
		wanted[ref] = true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for ref, e := range l.entries {
		if wanted[ref] {
			continue
		}
		if e.image != nil {
			e.image.Close()
		}
		delete(l.entries, ref)
	}
}

// Close stops the workers and releases every decoded image.
func (l *Loader) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	close(l.jobs)
	l.mu.Unlock()

	l.cancel()
	l.wg.Wait()

	// Drain results the workers delivered before stopping.
	for drained := false; !drained; {
		select {
		case res := <-l.results:
			if res.image != nil {
				res.image.Close()
			}
		default:
			drained = true
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for ref, e := range l.entries {
		if e.image != nil {
			e.image.Close()
		}
		delete(l.entries, ref)
	}
}

func (l *Loader) worker() {
	defer l.wg.Done()

	for ref := range l.jobs {
		if l.ctx.Err() != nil {
			continue
		}

		img, err := l.load(ref)
		res := result{ref: ref, image: img, err: err}

		select {
		case l.results <- res:
		case <-l.ctx.Done():
			if img != nil {
				img.Close()
			}
		}
	}
}

func (l *Loader) load(ref string) (*Image, error) {
	ctx, cancel := context.WithTimeout(l.ctx, l.timeout)
	defer cancel()

	data, err := l.fetch(ctx, ref)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}
