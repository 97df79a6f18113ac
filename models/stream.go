package models

import (
	"fmt"
	"time"
)

// Message types pushed over the websocket and Kafka
const (
	MessageConnection = "connection"
	MessageSnapshot   = "snapshot"
	MessageAlert      = "alert"
	MessageStats      = "stats"
	MessagePong       = "pong"
	MessageRecord     = "record"
)

// StreamMessage represents a message sent to push and messaging clients
type StreamMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// KPIThresholds defines the limits the threshold monitor checks
type KPIThresholds struct {
	MaxQCFailRate      float64 `json:"max_qc_fail_rate"`
	MinPressureBar     float64 `json:"min_pressure_bar"`
	OEETargetMargin    float64 `json:"oee_target_margin"`
	MaxEnergyIntensity float64 `json:"max_energy_intensity"`
}

// DefaultKPIThresholds returns the thresholds the monitor starts with
func DefaultKPIThresholds() KPIThresholds {
	return KPIThresholds{
		MaxQCFailRate:   0.05,
		MinPressureBar:  6.8,
		OEETargetMargin: 0,
	}
}

// Validate rejects rates outside [0,1] and negative limits
func (t KPIThresholds) Validate() error {
	if t.MaxQCFailRate < 0 || t.MaxQCFailRate > 1 {
		return fmt.Errorf("max_qc_fail_rate must be within [0,1], got %v", t.MaxQCFailRate)
	}
	if t.OEETargetMargin < 0 || t.OEETargetMargin > 1 {
		return fmt.Errorf("oee_target_margin must be within [0,1], got %v", t.OEETargetMargin)
	}
	if t.MinPressureBar < 0 {
		return fmt.Errorf("min_pressure_bar must not be negative, got %v", t.MinPressureBar)
	}
	if t.MaxEnergyIntensity < 0 {
		return fmt.Errorf("max_energy_intensity must not be negative, got %v", t.MaxEnergyIntensity)
	}
	return nil
}
