//go:build no_mqtt

package main

import (
	"log/slog"

	"lor-go-bridge/internal/director"
)

type mqttStopper struct{}

func (m *mqttStopper) Stop() {}

func initMQTT(_ *director.Director, _ *Config, _ *slog.Logger) *mqttStopper {
	return &mqttStopper{}
}
