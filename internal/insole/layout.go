// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package insole

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/relabs-tech/gait_computer/internal/gait"
	"github.com/relabs-tech/gait_computer/internal/protocol"
)

// Channel is one FSR on the insole.
type Channel struct {
	Label   string  `yaml:"label"`
	AreaCM2 float64 `yaml:"area_cm2"` // 0 = layout default
	X       float64 `yaml:"x"`        // m
	Y       float64 `yaml:"y"`        // m
}

// Layout is the static description of an insole, channels in firmware order.
type Layout struct {
	TicksPerSecond float64   `yaml:"ticks_per_second"`
	DefaultAreaCM2 float64   `yaml:"default_area_cm2"`
	Channels       []Channel `yaml:"channels"`
}

// DefaultLayout matches the current left insole build.
var DefaultLayout = Layout{
	TicksPerSecond: 1000,
	DefaultAreaCM2: 6.5,
	Channels: []Channel{
		{Label: "Toe R", AreaCM2: 3.0, X: +0.07, Y: +0.18},
		{Label: "Ball R", AreaCM2: 3.0, X: +0.04, Y: +0.10},
		{Label: "Heel R", AreaCM2: 3.5, X: +0.02, Y: -0.03},
		{Label: "Heel L", AreaCM2: 3.5, X: -0.02, Y: -0.03},
		{Label: "Mid", AreaCM2: 3.0, X: 0.00, Y: +0.05},
		{Label: "Ball L", AreaCM2: 3.0, X: -0.04, Y: +0.10},
		{Label: "Toe L", AreaCM2: 3.0, X: -0.07, Y: +0.18},
		{Label: "Ball Mid", AreaCM2: 3.0, X: 0.00, Y: +0.11},
	},
}

// LoadLayout reads a YAML layout file. Missing scalar fields take the
// DefaultLayout values.
func LoadLayout(path string) (Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Layout{}, fmt.Errorf("failed to read insole layout: %w", err)
	}

	var l Layout
	if err := yaml.Unmarshal(data, &l); err != nil {
		return Layout{}, fmt.Errorf("failed to parse insole layout %s: %w", path, err)
	}
	if l.TicksPerSecond == 0 {
		l.TicksPerSecond = DefaultLayout.TicksPerSecond
	}
	if l.DefaultAreaCM2 == 0 {
		l.DefaultAreaCM2 = DefaultLayout.DefaultAreaCM2
	}
	if err := l.Validate(); err != nil {
		return Layout{}, fmt.Errorf("insole layout %s: %w", path, err)
	}
	return l, nil
}

// Validate checks the layout against the frame format.
func (l Layout) Validate() error {
	if len(l.Channels) != protocol.InsoleChannels {
		return fmt.Errorf("expected %d channels, got %d", protocol.InsoleChannels, len(l.Channels))
	}
	if l.TicksPerSecond <= 0 {
		return fmt.Errorf("ticks_per_second must be positive, got %v", l.TicksPerSecond)
	}
	seen := make(map[string]bool, len(l.Channels))
	for i, c := range l.Channels {
		if c.Label == "" {
			return fmt.Errorf("channel %d has no label", i)
		}
		if seen[c.Label] {
			return fmt.Errorf("duplicate channel label %q", c.Label)
		}
		seen[c.Label] = true
		if c.AreaCM2 < 0 {
			return fmt.Errorf("channel %q: negative area", c.Label)
		}
	}
	return nil
}

// Area returns the contact area of channel i in cm².
func (l Layout) Area(i int) float64 {
	if a := l.Channels[i].AreaCM2; a > 0 {
		return a
	}
	return l.DefaultAreaCM2
}

// Positions returns the sensor positions by label for COP computation.
func (l Layout) Positions() map[string]gait.Position {
	out := make(map[string]gait.Position, len(l.Channels))
	for _, c := range l.Channels {
		out[c.Label] = gait.Position{X: c.X, Y: c.Y}
	}
	return out
}
