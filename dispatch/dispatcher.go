// Package dispatch decodes raw CAN frames against a database and
// delivers the decoded signals to observers.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/squadracorsepolito/candecode/can"
	"github.com/squadracorsepolito/candecode/dbc"
	"github.com/squadracorsepolito/candecode/internal"
	"github.com/squadracorsepolito/candecode/mux"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrUnknownFrame  = errors.New("dispatch: unknown frame")
	ErrUnknownSignal = errors.New("dispatch: unknown signal")
	ErrNilObserver   = errors.New("dispatch: nil observer")
)

// Dispatcher drives the decoding of raw frames.
//
// In broadcast mode every signal of every known frame goes to a single
// observer, and frames missing from the database are reported as unmatched
// events. Subscriptions deliver only the frames and signals they name.
// Both can be used on the same dispatcher.
//
// A Dispatcher is not safe for concurrent use.
type Dispatcher struct {
	tel   *internal.Telemetry
	stats *internal.Stats

	db *dbc.Database

	broadcast Observer
	subs      map[uint32][]*Subscription

	frameCounter     metric.Int64Counter
	unmatchedCounter metric.Int64Counter
	signalCounter    metric.Int64Counter
	muxFaultCounter  metric.Int64Counter
}

// New returns a dispatcher that delivers only subscribed signals.
func New(db *dbc.Database) *Dispatcher {
	tel := internal.NewTelemetry("dispatch", "dispatcher")

	return &Dispatcher{
		tel: tel,

		db: db,

		subs: make(map[uint32][]*Subscription),

		frameCounter:     tel.NewCounter("frames"),
		unmatchedCounter: tel.NewCounter("unmatched_frames"),
		signalCounter:    tel.NewCounter("signals"),
		muxFaultCounter:  tel.NewCounter("mux_faults"),
	}
}

// NewBroadcast returns a dispatcher that decodes every frame
// of the database and delivers the result to obs.
func NewBroadcast(db *dbc.Database, obs Observer) *Dispatcher {
	d := New(db)
	d.broadcast = obs
	return d
}

// SetStats enables the throughput counters of stats.
func (d *Dispatcher) SetStats(stats *internal.Stats) {
	d.stats = stats
}

// Subscribe registers obs for the signal sigName of the frame frameName.
// An empty sigName subscribes every signal of the frame.
//
// With onChange set, a signal is delivered only when its raw value differs
// from the one delivered last time. Each subscription keeps its own history.
func (d *Dispatcher) Subscribe(frameName, sigName string, obs Observer, onChange bool) (*Subscription, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}

	frame, ok := d.db.FrameByName(frameName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFrame, frameName)
	}

	var sig *dbc.Signal
	if sigName != "" {
		sig, ok = frame.Signal(sigName)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownSignal, frameName, sigName)
		}
	}

	sub := newSubscription(frame, sig, obs, onChange)
	d.subs[frame.ID] = append(d.subs[frame.ID], sub)

	return sub, nil
}

// SubscribeSelector registers obs using a "Frame" or "Frame.Signal" selector.
// A selector without a dot that names no frame is looked up as a signal name,
// and the first frame carrying it is used.
func (d *Dispatcher) SubscribeSelector(selector string, obs Observer, onChange bool) (*Subscription, error) {
	frameName, sigName, found := strings.Cut(selector, ".")
	if found {
		return d.Subscribe(frameName, sigName, obs, onChange)
	}

	if _, ok := d.db.FrameByName(selector); ok {
		return d.Subscribe(selector, "", obs, onChange)
	}

	frame, ok := d.db.FrameBySignalName(selector)
	if !ok {
		return nil, fmt.Errorf("%w: no frame or signal named %s", ErrUnknownFrame, selector)
	}

	return d.Subscribe(frame.Name, selector, obs, onChange)
}

// Subscriptions returns the registered subscriptions of the frame with the given id.
func (d *Dispatcher) Subscriptions(frameID uint32) []*Subscription {
	return d.subs[frameID]
}

// Process decodes a raw frame and delivers the resulting events.
// Decoding faults are logged and never stop the caller.
func (d *Dispatcher) Process(ctx context.Context, raw *can.Frame) {
	ctx, span := d.tel.NewTrace(ctx, "process CAN frame")
	defer span.End()

	span.SetAttributes(attribute.Int64("can_id", int64(raw.ID)))

	d.frameCounter.Add(ctx, 1)
	if d.stats != nil {
		d.stats.IncrementFrameCount()
	}

	// remote frames carry no data and never match a database frame
	frame, ok := d.db.FrameByID(raw.ID)
	if !ok || raw.Remote {
		span.SetAttributes(attribute.Bool("remote", raw.Remote))
		d.unmatchedCounter.Add(ctx, 1)

		if d.broadcast != nil {
			id := raw.KernelID()
			d.deliver(ctx, d.broadcast, &Event{
				CANID:     id,
				RawValue:  uint64(id),
				Timestamp: raw.Timestamp,
				Device:    raw.Device,
			})
		}

		return
	}

	subs := d.subs[frame.ID]
	if d.broadcast == nil && len(subs) == 0 {
		return
	}

	span.SetAttributes(attribute.String("frame", frame.Name))

	res, err := mux.Resolve(frame, raw.Data)
	if err != nil {
		d.muxFaultCounter.Add(ctx, 1)
		span.SetStatus(codes.Error, "mux fault")
		span.RecordError(err)
		d.tel.LogWarn("cannot resolve frame", "frame", frame.Name, "reason", err)
		return
	}

	if d.broadcast != nil {
		for sig := range res.ActiveSignals() {
			ev, err := d.decode(frame, sig, raw)
			if err != nil {
				d.tel.LogError("failed to decode signal", err, "frame", frame.Name, "signal", sig.Name)
				continue
			}

			d.deliver(ctx, d.broadcast, ev)
		}
	}

	for _, sub := range subs {
		d.processSubscription(ctx, sub, res, raw)
	}
}

func (d *Dispatcher) processSubscription(ctx context.Context, sub *Subscription, res *mux.Resolution, raw *can.Frame) {
	if sub.signal != nil {
		if !res.IsActive(sub.signal) {
			return
		}

		d.fire(ctx, sub, sub.signal, raw)
		return
	}

	for sig := range res.ActiveSignals() {
		d.fire(ctx, sub, sig, raw)
	}
}

func (d *Dispatcher) fire(ctx context.Context, sub *Subscription, sig *dbc.Signal, raw *can.Frame) {
	ev, err := d.decode(sub.frame, sig, raw)
	if err != nil {
		d.tel.LogError("failed to decode signal", err, "frame", sub.frame.Name, "signal", sig.Name)
		return
	}

	if !sub.shouldFire(sig, ev.RawValue) {
		return
	}

	d.deliver(ctx, sub.observer, ev)
}

func (d *Dispatcher) deliver(ctx context.Context, obs Observer, ev *Event) {
	if !ev.Unmatched() {
		d.signalCounter.Add(ctx, 1)
		if d.stats != nil {
			d.stats.IncrementSignalCount()
		}
	}

	obs.Observe(ctx, ev)
}

func (d *Dispatcher) decode(frame *dbc.Frame, sig *dbc.Signal, raw *can.Frame) (*Event, error) {
	rawValue, value, err := sig.Decode(raw.Data)
	if err != nil {
		return nil, err
	}

	ev := &Event{
		Frame:     frame,
		Signal:    sig,
		CANID:     raw.ID,
		RawValue:  rawValue,
		Value:     value,
		Timestamp: raw.Timestamp,
		Device:    raw.Device,
	}

	ev.Label, ev.HasLabel = sig.Label(rawValue)

	return ev, nil
}
