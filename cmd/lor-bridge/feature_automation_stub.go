//go:build no_automation

package main

import (
	"log/slog"

	"lor-go-bridge/internal/director"
	"lor-go-bridge/internal/web"
)

type autoStopper struct{}

func (a *autoStopper) Stop() {}

func initAutomation(_ *director.Director, _ *Config, _ *slog.Logger) (*autoStopper, []web.ServerOption) {
	return &autoStopper{}, nil
}
