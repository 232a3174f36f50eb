package service

import (
	"sync"

	"github.com/paulmach/orb"
)

// Map receives the rendering operations of a session.
// Calls are made with the session lock held and must not block.
type Map interface {
	AddLayer(l *Layer)
	AddFeature(layer string, f RenderedFeature)
	AddLabel(layer string, l Label)
	AddControl(c Control)
	RemoveControl(id string)
	SetView(center orb.Point, zoom int)
	ShowError(msg string)
}

// Command operations.
const (
	OpAddLayer      = "addLayer"
	OpAddFeature    = "addFeature"
	OpAddLabel      = "addLabel"
	OpAddControl    = "addControl"
	OpRemoveControl = "removeControl"
	OpSetView       = "setView"
	OpError         = "error"
)

// Command is one map operation queued for the browser.
type Command struct {
	Op      string `json:"op"`
	Layer   string `json:"layer,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// LayerPayload is the payload of an addLayer command.
type LayerPayload struct {
	Kind    LayerKind    `json:"kind"`
	Overlay bool         `json:"overlay"`
	Tile    *TileOptions `json:"tile,omitempty"`
}

// ViewPayload is the payload of a setView command.
type ViewPayload struct {
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Zoom int     `json:"zoom"`
}

// Outbox is a Map that queues commands in call order until drained.
// Nothing is dropped: a slow reader only makes the queue longer.
type Outbox struct {
	mu     sync.Mutex
	queue  []Command
	notify chan struct{}
}

// NewOutbox creates an empty outbox.
func NewOutbox() *Outbox {
	return &Outbox{notify: make(chan struct{}, 1)}
}

// Ready is signalled whenever commands are waiting.
func (o *Outbox) Ready() <-chan struct{} { return o.notify }

// Drain returns and clears the queued commands.
func (o *Outbox) Drain() []Command {
	o.mu.Lock()
	defer o.mu.Unlock()
	cmds := o.queue
	o.queue = nil
	return cmds
}

// Len returns the number of queued commands.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.queue)
}

func (o *Outbox) push(c Command) {
	o.mu.Lock()
	o.queue = append(o.queue, c)
	o.mu.Unlock()
	select {
	case o.notify <- struct{}{}:
	default:
		// already signalled
	}
}

func (o *Outbox) AddLayer(l *Layer) {
	o.push(Command{Op: OpAddLayer, Layer: l.Name(), Payload: LayerPayload{
		Kind:    l.Descriptor.Type,
		Overlay: l.Descriptor.Type.Overlay(),
		Tile:    l.Tile,
	}})
}

func (o *Outbox) AddFeature(layer string, f RenderedFeature) {
	o.push(Command{Op: OpAddFeature, Layer: layer, Payload: f})
}

func (o *Outbox) AddLabel(layer string, l Label) {
	o.push(Command{Op: OpAddLabel, Layer: layer, Payload: l})
}

func (o *Outbox) AddControl(c Control) {
	o.push(Command{Op: OpAddControl, Payload: c})
}

func (o *Outbox) RemoveControl(id string) {
	o.push(Command{Op: OpRemoveControl, Payload: map[string]string{"id": id}})
}

func (o *Outbox) SetView(center orb.Point, zoom int) {
	o.push(Command{Op: OpSetView, Payload: ViewPayload{Lat: center.Lat(), Lon: center.Lon(), Zoom: zoom}})
}

func (o *Outbox) ShowError(msg string) {
	o.push(Command{Op: OpError, Payload: map[string]string{"message": msg}})
}
