//go:build !no_mqtt

// Package mqtt exposes the LOR bus over MQTT: retained per-channel state
// topics and JSON command topics for setting, fading, and powering units.
package mqtt

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"lor-go-bridge/internal/director"
	"lor-go-bridge/internal/lor"
)

// Config holds MQTT bridge configuration.
type Config struct {
	Broker      string
	Username    string
	Password    string
	TopicPrefix string
}

// Bridge connects the director to an MQTT broker.
type Bridge struct {
	client pahomqtt.Client
	dir    *director.Director
	prefix string
	logger *slog.Logger
	unsub  func()
}

// NewBridge creates and connects an MQTT bridge.
func NewBridge(dir *director.Director, cfg Config, logger *slog.Logger) (*Bridge, error) {
	b := &Bridge{
		dir:    dir,
		prefix: cfg.TopicPrefix,
		logger: logger.With("component", "mqtt"),
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID("lor-go-bridge").
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetWill(cfg.TopicPrefix+"/bridge/state", "offline", 1, true).
		SetOnConnectHandler(func(_ pahomqtt.Client) {
			b.logger.Info("MQTT connected")
			b.publishBridgeState("online")
			b.publishAllStates()
			b.subscribeCommands()
		}).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			b.logger.Warn("MQTT connection lost", "err", err)
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}

	b.client = client
	return b, nil
}

// Start subscribes to director events and begins MQTT publishing.
func (b *Bridge) Start() {
	b.unsub = b.dir.Events().OnAll(b.handleEvent)
	b.logger.Info("MQTT bridge started", "prefix", b.prefix)
}

// Stop publishes offline state, unsubscribes, and disconnects.
func (b *Bridge) Stop() {
	if b.unsub != nil {
		b.unsub()
	}
	b.publishBridgeState("offline")
	b.client.Disconnect(1000)
	b.logger.Info("MQTT bridge stopped")
}

func (b *Bridge) handleEvent(event director.Event) {
	data, ok := event.Data.(map[string]interface{})
	if !ok {
		return
	}
	switch event.Type {
	case director.EventChannelState:
		unit, _ := data["unit"].(uint8)
		channel, _ := data["channel"].(uint8)
		b.publish(channelTopic(b.prefix, unit, channel), mustJSON(channelPayload(data)), true)
	case director.EventUnitState:
		unit, _ := data["unit"].(uint8)
		on, _ := data["on"].(bool)
		b.publish(unitTopic(b.prefix, unit), mustJSON(map[string]any{"state": onOff(on)}), true)
	}
}

func channelPayload(data map[string]interface{}) map[string]any {
	on, _ := data["on"].(bool)
	payload := map[string]any{
		"state":      onOff(on),
		"brightness": data["brightness"],
	}
	if effect, ok := data["effect"].(string); ok {
		payload["effect"] = effect
	}
	return payload
}

func (b *Bridge) publishBridgeState(state string) {
	b.publish(b.prefix+"/bridge/state", []byte(state), true)
}

func (b *Bridge) publishAllStates() {
	states, err := b.dir.Channels()
	if err != nil {
		b.logger.Error("list channels for state publish", "err", err)
		return
	}
	for _, st := range states {
		payload := mustJSON(map[string]any{
			"state":      onOff(st.On),
			"brightness": st.Brightness,
		})
		b.publish(channelTopic(b.prefix, st.Unit, st.Channel), payload, true)
	}
}

func (b *Bridge) subscribeCommands() {
	chTopic := b.prefix + "/unit/+/channel/+/set"
	b.client.Subscribe(chTopic, 1, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		unit, channel, ok := parseChannelSetTopic(b.prefix, msg.Topic())
		if !ok {
			b.logger.Warn("bad channel set topic", "topic", msg.Topic())
			return
		}
		b.handleChannelCommand(unit, channel, msg.Payload())
	})

	unitTopic := b.prefix + "/unit/+/set"
	b.client.Subscribe(unitTopic, 1, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		unit, ok := parseUnitSetTopic(b.prefix, msg.Topic())
		if !ok {
			b.logger.Warn("bad unit set topic", "topic", msg.Topic())
			return
		}
		b.handleUnitCommand(unit, msg.Payload())
	})
}

// channelCommand is the JSON body accepted on channel set topics.
type channelCommand struct {
	State      string   `json:"state,omitempty"`      // "ON" or "OFF"
	Brightness *float64 `json:"brightness,omitempty"` // normalized 0-1
	Transition float64  `json:"transition,omitempty"` // seconds
}

func (b *Bridge) handleChannelCommand(unit, channel uint8, payload []byte) {
	var cmd channelCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		b.logger.Warn("invalid command JSON", "unit", unit, "channel", channel, "err", err)
		return
	}

	u := lor.Unit(unit)
	var err error
	switch {
	case cmd.Brightness != nil && cmd.Transition > 0:
		err = b.dir.Transition(u, channel, *cmd.Brightness, cmd.Transition)
	case cmd.Brightness != nil:
		err = b.dir.SetBrightness(u, channel, *cmd.Brightness)
	case strings.EqualFold(cmd.State, "ON"):
		err = b.dir.On(u, channel)
	case strings.EqualFold(cmd.State, "OFF"):
		if cmd.Transition > 0 {
			err = b.dir.Transition(u, channel, 0, cmd.Transition)
		} else {
			err = b.dir.Off(u, channel)
		}
	default:
		b.logger.Warn("empty command", "unit", unit, "channel", channel)
		return
	}
	if err != nil {
		b.logger.Warn("channel command failed", "unit", unit, "channel", channel, "err", err)
	}
}

func (b *Bridge) handleUnitCommand(unit uint8, payload []byte) {
	var cmd struct {
		State string `json:"state"`
	}
	if err := json.Unmarshal(payload, &cmd); err != nil {
		b.logger.Warn("invalid unit command JSON", "unit", unit, "err", err)
		return
	}
	on := strings.EqualFold(cmd.State, "ON")
	if !on && !strings.EqualFold(cmd.State, "OFF") {
		b.logger.Warn("unit command state must be ON or OFF", "unit", unit, "state", cmd.State)
		return
	}
	if err := b.dir.UnitPower(lor.Unit(unit), on); err != nil {
		b.logger.Warn("unit command failed", "unit", unit, "err", err)
	}
}

func (b *Bridge) publish(topic string, payload []byte, retained bool) {
	token := b.client.Publish(topic, 1, retained, payload)
	go func() {
		if !token.WaitTimeout(5 * time.Second) {
			b.logger.Warn("MQTT publish timeout", "topic", topic)
		} else if err := token.Error(); err != nil {
			b.logger.Warn("MQTT publish error", "topic", topic, "err", err)
		}
	}()
}

func channelTopic(prefix string, unit, channel uint8) string {
	return fmt.Sprintf("%s/unit/%d/channel/%d", prefix, unit, channel)
}

func unitTopic(prefix string, unit uint8) string {
	return fmt.Sprintf("%s/unit/%d", prefix, unit)
}

// parseChannelSetTopic extracts unit and channel from
// "<prefix>/unit/<u>/channel/<c>/set".
func parseChannelSetTopic(prefix, topic string) (unit, channel uint8, ok bool) {
	rest, found := strings.CutPrefix(topic, prefix+"/unit/")
	if !found {
		return 0, 0, false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 4 || parts[1] != "channel" || parts[3] != "set" {
		return 0, 0, false
	}
	u, err := strconv.ParseUint(parts[0], 10, 8)
	if err != nil {
		return 0, 0, false
	}
	c, err := strconv.ParseUint(parts[2], 10, 8)
	if err != nil {
		return 0, 0, false
	}
	return uint8(u), uint8(c), true
}

// parseUnitSetTopic extracts the unit from "<prefix>/unit/<u>/set".
func parseUnitSetTopic(prefix, topic string) (unit uint8, ok bool) {
	rest, found := strings.CutPrefix(topic, prefix+"/unit/")
	if !found {
		return 0, false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[1] != "set" {
		return 0, false
	}
	u, err := strconv.ParseUint(parts[0], 10, 8)
	if err != nil {
		return 0, false
	}
	return uint8(u), true
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		// Only map/scalar payloads reach here; marshal cannot fail for them.
		return []byte("{}")
	}
	return data
}
