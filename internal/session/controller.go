// Package session holds the per-user listing state machine. Presentation
// adapters drive a Controller and render the snapshots it publishes.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/raine/sellsmart-bot/internal/listing"
	"github.com/raine/sellsmart-bot/internal/llm"
	"github.com/raine/sellsmart-bot/internal/prompt"
	"github.com/rs/zerolog/log"
)

var (
	ErrBusy         = errors.New("another request is still running")
	ErrNotReady     = errors.New("no analyzed photo yet")
	ErrAlreadyReady = errors.New("a photo is already being worked on, reset first")
	ErrNoImage      = errors.New("no image provided")
)

const (
	analyzingMessage = "Analyzing image with Gemini 2.5 Flash..."
	applyingFormat   = "Applying: %q with Gemini 2.5 Flash..."
	generatingFormat = "Generating %s image with Nano Banana Pro..."
)

// Listener receives a snapshot after every state change.
type Listener func(State)

// Controller owns the state of one session. At most one gateway call runs at
// a time; the mutex is never held while a call is in flight.
type Controller struct {
	gateway llm.Gateway

	mu        sync.Mutex
	state     State
	busy      bool
	epoch     uint64
	listeners map[int]Listener
	nextID    int
}

// NewController creates a controller in the initial upload state.
func NewController(gateway llm.Gateway) *Controller {
	return &Controller{
		gateway:   gateway,
		state:     InitialState(),
		listeners: make(map[int]Listener),
	}
}

// OnChange registers fn and returns a function that removes it.
func (c *Controller) OnChange(fn Listener) (remove func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

// Snapshot returns a deep copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// Busy reports whether a gateway call is in flight.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// commitLocked must be called with mu held. It returns the listeners to
// notify along with the snapshot to send them.
func (c *Controller) commitLocked() (State, []Listener) {
	snap := c.state.Clone()
	ls := make([]Listener, 0, len(c.listeners))
	for _, l := range c.listeners {
		ls = append(ls, l)
	}
	return snap, ls
}

func notify(snap State, listeners []Listener) {
	for _, l := range listeners {
		l(snap)
	}
}

// update applies a synchronous change and notifies listeners.
func (c *Controller) update(fn func(*State) error) error {
	c.mu.Lock()
	if err := fn(&c.state); err != nil {
		c.mu.Unlock()
		return err
	}
	snap, ls := c.commitLocked()
	c.mu.Unlock()
	notify(snap, ls)
	return nil
}

// begin marks the controller busy, lets prepare validate and mutate the
// state, and turns the loading indicator on with the message prepare returns.
func (c *Controller) begin(prepare func(*State) (string, error)) (uint64, error) {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return 0, ErrBusy
	}
	message, err := prepare(&c.state)
	if err != nil {
		c.mu.Unlock()
		return 0, err
	}
	c.busy = true
	c.state.Loading = Loading{Active: true, Message: message}
	epoch := c.epoch
	snap, ls := c.commitLocked()
	c.mu.Unlock()

	notify(snap, ls)
	return epoch, nil
}

// end clears the loading indicator and, unless the session was reset while
// the call ran, applies the call's outcome.
func (c *Controller) end(epoch uint64, apply func(*State)) {
	c.mu.Lock()
	c.busy = false
	c.state.Loading = Loading{}
	if epoch != c.epoch {
		log.Debug().Msg("discarding result of call started before reset")
	} else if apply != nil {
		apply(&c.state)
	}
	snap, ls := c.commitLocked()
	c.mu.Unlock()
	notify(snap, ls)
}

func requireReady(s *State) error {
	if s.Phase != PhaseReady {
		return ErrNotReady
	}
	if !s.HasImage() {
		return ErrNoImage
	}
	return nil
}

// SubmitImage stores a freshly captured photo and analyzes it. On success the
// session becomes ready on the details view; on failure the photo is
// discarded and the session stays in upload.
func (c *Controller) SubmitImage(ctx context.Context, image listing.Payload) (*listing.Draft, error) {
	if image.IsEmpty() {
		return nil, ErrNoImage
	}
	img := image.Clone()

	epoch, err := c.begin(func(s *State) (string, error) {
		if s.Phase != PhaseUpload {
			return "", ErrAlreadyReady
		}
		s.Image = &img
		return analyzingMessage, nil
	})
	if err != nil {
		return nil, err
	}

	var apply func(*State)
	defer func() { c.end(epoch, apply) }()

	apply = func(s *State) { s.Image = nil }
	result, err := c.gateway.Analyze(ctx, img)
	if err != nil {
		return nil, err
	}
	if result == nil || result.Draft == nil {
		return nil, fmt.Errorf("%w: empty result", llm.ErrAnalysisFailed)
	}

	draft := result.Draft.Clone()
	draft.Normalize()
	if err := draft.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", llm.ErrAnalysisFailed, err)
	}
	apply = func(s *State) {
		s.Draft = draft
		s.Phase = PhaseReady
		s.View = ViewDetails
	}
	return draft.Clone(), nil
}

// SelectView switches the active tab. It never calls the gateway.
func (c *Controller) SelectView(v View) error {
	if !v.Valid() {
		return fmt.Errorf("unknown view %d", int(v))
	}
	return c.update(func(s *State) error {
		if s.Phase != PhaseReady {
			return ErrNotReady
		}
		s.View = v
		return nil
	})
}

// ApplyEdit sends the current photo with instruction to the editing model
// and replaces the photo with the result. A failed edit leaves the session
// untouched.
func (c *Controller) ApplyEdit(ctx context.Context, instruction string) (listing.Payload, error) {
	instruction, err := prompt.QuickEdit(instruction)
	if err != nil {
		return listing.Payload{}, err
	}

	var img listing.Payload
	epoch, err := c.begin(func(s *State) (string, error) {
		if err := requireReady(s); err != nil {
			return "", err
		}
		img = s.Image.Clone()
		return fmt.Sprintf(applyingFormat, instruction), nil
	})
	if err != nil {
		return listing.Payload{}, err
	}

	var apply func(*State)
	defer func() { c.end(epoch, apply) }()

	result, err := c.gateway.Edit(ctx, img, instruction)
	if err != nil {
		return listing.Payload{}, err
	}
	if result == nil || result.Image.IsEmpty() {
		return listing.Payload{}, fmt.Errorf("%w: empty result", llm.ErrEditFailed)
	}

	out := result.Image.Clone()
	apply = func(s *State) { s.Image = &out }
	return out.Clone(), nil
}

// SetStyle stores the generation options.
func (c *Controller) SetStyle(sel prompt.Selection) error {
	if err := sel.Validate(); err != nil {
		return err
	}
	return c.update(func(s *State) error {
		if s.Phase != PhaseReady {
			return ErrNotReady
		}
		s.Style = sel
		return nil
	})
}

// Style returns the current generation options.
func (c *Controller) Style() prompt.Selection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Style
}

// Generate composes a prompt from the stored style and replaces the photo
// with the generated one.
func (c *Controller) Generate(ctx context.Context) (listing.Payload, error) {
	var (
		img listing.Payload
		sel prompt.Selection
	)
	epoch, err := c.begin(func(s *State) (string, error) {
		if err := requireReady(s); err != nil {
			return "", err
		}
		img = s.Image.Clone()
		sel = s.Style
		return fmt.Sprintf(generatingFormat, sel.Resolution), nil
	})
	if err != nil {
		return listing.Payload{}, err
	}

	var apply func(*State)
	defer func() { c.end(epoch, apply) }()

	result, err := c.gateway.Generate(ctx, img, prompt.ComposeGeneration(sel), sel.Resolution)
	if err != nil {
		return listing.Payload{}, err
	}
	if result == nil || result.Image.IsEmpty() {
		return listing.Payload{}, fmt.Errorf("%w: empty result", llm.ErrGenerateFailed)
	}

	out := result.Image.Clone()
	apply = func(s *State) { s.Image = &out }
	return out.Clone(), nil
}

// EditDraft applies local changes to the listing text. The edited text is
// never sent back to the gateway.
func (c *Controller) EditDraft(edit DraftEdit) error {
	return c.update(func(s *State) error {
		if s.Phase != PhaseReady || s.Draft == nil {
			return ErrNotReady
		}
		edit.apply(s.Draft)
		return nil
	})
}

// Reset discards photo, draft and style and returns to the upload phase. A
// call still in flight keeps the loading indicator until it returns, and its
// result is then dropped.
func (c *Controller) Reset() {
	c.mu.Lock()
	loading := c.state.Loading
	c.state = InitialState()
	c.state.Loading = loading
	c.epoch++
	snap, ls := c.commitLocked()
	c.mu.Unlock()
	notify(snap, ls)
}
