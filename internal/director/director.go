// Package director turns high-level lighting operations into encoded LOR
// messages, tracks the last commanded state of every channel, and persists
// it so a restart can restore the picture the controllers were showing.
package director

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"lor-go-bridge/internal/link"
	"lor-go-bridge/internal/lor"
	"lor-go-bridge/internal/model"
	"lor-go-bridge/internal/store"
)

// maxFadeSeconds is the longest fade representable in protocol ticks.
const maxFadeSeconds = 6553.5

// Config holds director configuration.
type Config struct {
	// Curve maps normalized [0,1] brightness onto the protocol encoding.
	// Defaults to lor.CurveLinear.
	Curve lor.Curve
	// Model optionally names a controller model; when set, unit ids and
	// channel numbers are validated against it before encoding.
	Model string
}

// Director orchestrates encoding, transmission, state tracking, and
// persistence for one LOR bus.
type Director struct {
	link   link.Link
	db     store.Store
	events *EventBus
	logger *slog.Logger
	curve  lor.Curve
	model  *model.Model

	// mu guards buf; every message is encoded into this scratch buffer and
	// handed to the link before the lock is released.
	mu  sync.Mutex
	buf [lor.MaxMessageLen]byte
}

// New creates a director. The link, store, and event bus are owned by the
// caller.
func New(l link.Link, db store.Store, events *EventBus, cfg Config, logger *slog.Logger) (*Director, error) {
	d := &Director{
		link:   l,
		db:     db,
		events: events,
		logger: logger.With("component", "director"),
		curve:  cfg.Curve,
	}
	if d.curve == nil {
		d.curve = lor.CurveLinear
	}
	if cfg.Model != "" {
		m, ok := model.Lookup(cfg.Model)
		if !ok {
			return nil, fmt.Errorf("unknown controller model %q", cfg.Model)
		}
		d.model = &m
	}
	return d, nil
}

// Events returns the director's event bus.
func (d *Director) Events() *EventBus { return d.events }

// Start replays persisted channel state onto the bus so controllers match
// the last known picture after a restart.
func (d *Director) Start() error {
	states, err := d.db.ListChannels()
	if err != nil {
		return fmt.Errorf("restore channel state: %w", err)
	}
	for _, st := range states {
		var err error
		if st.On {
			err = d.send(func(w *lor.Writer) (int, error) {
				return lor.WriteChannelSetBrightness(w, lor.Unit(st.Unit), channelRef(st.Channel), d.curve(st.Brightness))
			})
		} else {
			err = d.send(func(w *lor.Writer) (int, error) {
				return lor.WriteChannelAction(w, lor.Unit(st.Unit), lor.ChannelOff, channelRef(st.Channel))
			})
		}
		if err != nil {
			return fmt.Errorf("replay unit %d channel %d: %w", st.Unit, st.Channel, err)
		}
	}
	if len(states) > 0 {
		d.logger.Info("channel state replayed", "channels", len(states))
	}
	return nil
}

// UnitPower turns a whole unit on or off. The broadcast unit addresses
// every controller; its state is not persisted per-unit.
func (d *Director) UnitPower(unit lor.Unit, on bool) error {
	if err := d.validate(unit, -1); err != nil {
		return err
	}
	action := lor.UnitOff
	if on {
		action = lor.UnitOn
	}
	err := d.send(func(w *lor.Writer) (int, error) {
		return lor.WriteUnitAction(w, unit, action)
	})
	if err != nil {
		return err
	}
	if unit != lor.UnitBroadcast {
		st := &store.UnitState{Unit: uint8(unit), On: on, UpdatedAt: time.Now().UTC()}
		if err := d.db.SaveUnit(st); err != nil {
			d.logger.Error("save unit state", "err", err, "unit", unit)
		}
	}
	d.events.Emit(Event{Type: EventUnitState, Data: map[string]interface{}{
		"unit": uint8(unit),
		"on":   on,
	}})
	return nil
}

// On turns a single channel fully on.
func (d *Director) On(unit lor.Unit, channel uint8) error {
	if err := d.validate(unit, int(channel)); err != nil {
		return err
	}
	err := d.send(func(w *lor.Writer) (int, error) {
		return lor.WriteChannelAction(w, unit, lor.ChannelOn, channelRef(channel))
	})
	if err != nil {
		return err
	}
	d.recordChannel(unit, channel, true, 1.0, "")
	return nil
}

// Off turns a single channel off.
func (d *Director) Off(unit lor.Unit, channel uint8) error {
	if err := d.validate(unit, int(channel)); err != nil {
		return err
	}
	err := d.send(func(w *lor.Writer) (int, error) {
		return lor.WriteChannelAction(w, unit, lor.ChannelOff, channelRef(channel))
	})
	if err != nil {
		return err
	}
	d.recordChannel(unit, channel, false, 0, "")
	return nil
}

// SetBrightness sets a channel to a normalized [0,1] brightness through the
// director's curve.
func (d *Director) SetBrightness(unit lor.Unit, channel uint8, normal float64) error {
	if err := d.validate(unit, int(channel)); err != nil {
		return err
	}
	if normal < 0 || normal > 1 {
		return fmt.Errorf("brightness %v out of range [0,1]", normal)
	}
	err := d.send(func(w *lor.Writer) (int, error) {
		return lor.WriteChannelSetBrightness(w, unit, channelRef(channel), d.curve(normal))
	})
	if err != nil {
		return err
	}
	d.recordChannel(unit, channel, normal > 0, normal, "")
	return nil
}

// Fade transitions a channel between two normalized brightness values over
// the given duration.
func (d *Director) Fade(unit lor.Unit, channel uint8, from, to, seconds float64) error {
	if err := d.validateFade(unit, channel, from, to, seconds); err != nil {
		return err
	}
	err := d.send(func(w *lor.Writer) (int, error) {
		return lor.WriteChannelFade(w, unit, channelRef(channel), d.curve(from), d.curve(to), lor.DurationOf(seconds))
	})
	if err != nil {
		return err
	}
	d.recordChannel(unit, channel, to > 0, to, "")
	return nil
}

// Transition fades a channel from its last recorded brightness to a new
// target. Channels with no recorded state fade from full.
func (d *Director) Transition(unit lor.Unit, channel uint8, to, seconds float64) error {
	return d.Fade(unit, channel, d.lastBrightness(unit, channel), to, seconds)
}

// FadeWith runs a foreground action (shimmer, twinkle, on, off) on the
// channel while it fades, as one chained transmission.
func (d *Director) FadeWith(unit lor.Unit, channel uint8, foreground lor.ChannelAction, from, to, seconds float64) error {
	if err := d.validateFade(unit, channel, from, to, seconds); err != nil {
		return err
	}
	err := d.send(func(w *lor.Writer) (int, error) {
		return lor.WriteChannelFadeWith(w, unit, foreground, channelRef(channel), d.curve(from), d.curve(to), lor.DurationOf(seconds))
	})
	if err != nil {
		return err
	}
	d.recordChannel(unit, channel, to > 0, to, "")
	return nil
}

// Twinkle starts the channel's twinkle effect.
func (d *Director) Twinkle(unit lor.Unit, channel uint8) error {
	return d.effect(unit, channel, lor.ChannelTwinkle, "twinkle")
}

// Shimmer starts the channel's shimmer effect.
func (d *Director) Shimmer(unit lor.Unit, channel uint8) error {
	return d.effect(unit, channel, lor.ChannelShimmer, "shimmer")
}

func (d *Director) effect(unit lor.Unit, channel uint8, action lor.ChannelAction, name string) error {
	if err := d.validate(unit, int(channel)); err != nil {
		return err
	}
	err := d.send(func(w *lor.Writer) (int, error) {
		return lor.WriteChannelAction(w, unit, action, channelRef(channel))
	})
	if err != nil {
		return err
	}
	d.recordChannel(unit, channel, true, d.lastBrightness(unit, channel), name)
	return nil
}

// Channels returns the persisted state of every known channel.
func (d *Director) Channels() ([]*store.ChannelState, error) {
	return d.db.ListChannels()
}

// Units returns the persisted state of every known unit.
func (d *Director) Units() ([]*store.UnitState, error) {
	return d.db.ListUnits()
}

// Unit returns one unit's persisted state.
func (d *Director) Unit(unit uint8) (*store.UnitState, error) {
	return d.db.GetUnit(unit)
}

// send encodes one message into the scratch buffer and hands it to the link.
func (d *Director) send(compose func(w *lor.Writer) (int, error)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	w := lor.NewWriter(d.buf[:])
	if _, err := compose(w); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return d.link.Send(w.Bytes())
}

func (d *Director) validate(unit lor.Unit, channel int) error {
	if unit == lor.UnitBroadcast {
		if channel >= 0 {
			return fmt.Errorf("channel commands cannot target the broadcast unit")
		}
		return nil
	}
	if d.model == nil {
		return nil
	}
	if !d.model.ValidUnit(unit) {
		return fmt.Errorf("unit %d out of range for %s", unit, d.model.Name)
	}
	if channel >= 0 && !d.model.ValidChannel(channel) {
		return fmt.Errorf("channel %d out of range for %s (%d channels)", channel, d.model.Name, d.model.Channels)
	}
	return nil
}

func (d *Director) validateFade(unit lor.Unit, channel uint8, from, to, seconds float64) error {
	if err := d.validate(unit, int(channel)); err != nil {
		return err
	}
	if from < 0 || from > 1 || to < 0 || to > 1 {
		return fmt.Errorf("fade brightness out of range [0,1]: from=%v to=%v", from, to)
	}
	if seconds < 0 || seconds > maxFadeSeconds {
		return fmt.Errorf("fade duration %vs out of range [0,%v]", seconds, maxFadeSeconds)
	}
	return nil
}

func (d *Director) recordChannel(unit lor.Unit, channel uint8, on bool, brightness float64, effect string) {
	st := &store.ChannelState{
		Unit:       uint8(unit),
		Channel:    channel,
		On:         on,
		Brightness: brightness,
		UpdatedAt:  time.Now().UTC(),
	}
	if err := d.db.SaveChannel(st); err != nil {
		d.logger.Error("save channel state", "err", err, "unit", unit, "channel", channel)
	}
	data := map[string]interface{}{
		"unit":       uint8(unit),
		"channel":    channel,
		"on":         on,
		"brightness": brightness,
	}
	if effect != "" {
		data["effect"] = effect
	}
	d.events.Emit(Event{Type: EventChannelState, Data: data})
}

func (d *Director) lastBrightness(unit lor.Unit, channel uint8) float64 {
	st, err := d.db.GetChannel(uint8(unit), channel)
	if err != nil {
		return 1.0
	}
	return st.Brightness
}

// channelRef maps a flat 0-based channel number onto the wire form: ids
// 0-15 directly, higher numbers through chained groups of 16.
func channelRef(channel uint8) lor.Channel {
	return lor.ChannelID{ID: channel % 16, Chain: channel / 16}
}
