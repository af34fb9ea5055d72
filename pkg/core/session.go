// pkg/core/session.go
package core

import (
	"errors"
	"time"
)

// ErrNoSession is returned by storage calls made outside a session.
var ErrNoSession = errors.New("no active session")

// Session is one run of the extension inside a host world.
type Session struct {
	ID               string
	WorldName        string
	ExtensionVersion string
	StartTime        time.Time
	EndTime          time.Time
}

// Ellipse holds the slip thresholds captured from a wheel's curves.
type Ellipse struct {
	ForwardExtremumSlip   float64 `json:"forwardExtremumSlip"`
	SidewaysExtremumSlip  float64 `json:"sidewaysExtremumSlip"`
	ForwardAsymptoteSlip  float64 `json:"forwardAsymptoteSlip"`
	SidewaysAsymptoteSlip float64 `json:"sidewaysAsymptoteSlip"`
}

// Baseline holds the undistorted curve values captured at discovery.
type Baseline struct {
	ForwardExtremumValue   float64 `json:"forwardExtremumValue"`
	ForwardAsymptoteValue  float64 `json:"forwardAsymptoteValue"`
	SidewaysExtremumValue  float64 `json:"sidewaysExtremumValue"`
	SidewaysAsymptoteValue float64 `json:"sidewaysAsymptoteValue"`
}

// WheelRecord describes a discovered wheel for telemetry.
type WheelRecord struct {
	SessionID    string
	InstanceID   int64
	Name         string
	Ellipse      Ellipse
	Baseline     Baseline
	Radius       float64
	Thickness    float64
	DiscoveredAt time.Time
	RemovedAt    time.Time
}

// GripSample is one engine result for one wheel.
type GripSample struct {
	SessionID          string
	InstanceID         int64
	SimTime            float64
	Time               time.Time
	ForwardSlip        float64
	SidewaysSlip       float64
	Overload           float64
	ForwardMultiplier  float64
	SidewaysMultiplier float64
}

// SkidPoint is one appended skid mark section.
type SkidPoint struct {
	Position Vector3
	Opacity  float64
}

// SkidTrail is a continuous skid mark, closed when the wheel regains grip.
type SkidTrail struct {
	SessionID  string
	InstanceID int64
	StartedAt  float64
	EndedAt    float64
	Points     []SkidPoint
}
