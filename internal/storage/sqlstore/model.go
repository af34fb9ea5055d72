package sqlstore

import (
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
)

// Models lists every table the store migrates.
var Models = []any{
	&Session{},
	&Wheel{},
	&GripSample{},
	&SkidTrail{},
}

// Session is one extension run.
type Session struct {
	ID               string     `json:"id" gorm:"primaryKey;size:36"`
	WorldName        string     `json:"worldName" gorm:"size:128"`
	ExtensionVersion string     `json:"extensionVersion" gorm:"size:64"`
	StartTime        time.Time  `json:"startTime"`
	EndTime          *time.Time `json:"endTime"`
}

func (*Session) TableName() string {
	return "sessions"
}

// Wheel is a discovered wheel with the curve values captured at discovery.
type Wheel struct {
	ID                    uint           `json:"id" gorm:"primarykey;autoIncrement"`
	SessionID             string         `json:"sessionId" gorm:"size:36;uniqueIndex:idx_wheel_session_instance"`
	InstanceID            int64          `json:"instanceId" gorm:"uniqueIndex:idx_wheel_session_instance"`
	Name                  string         `json:"name" gorm:"size:128"`
	ForwardExtremumSlip   float64        `json:"forwardExtremumSlip"`
	ForwardAsymptoteSlip  float64        `json:"forwardAsymptoteSlip"`
	SidewaysExtremumSlip  float64        `json:"sidewaysExtremumSlip"`
	SidewaysAsymptoteSlip float64        `json:"sidewaysAsymptoteSlip"`
	Baseline              datatypes.JSON `json:"baseline"`
	Radius                float64        `json:"radius"`
	Thickness             float64        `json:"thickness"`
	DiscoveredAt          time.Time      `json:"discoveredAt"`
	RemovedAt             *time.Time     `json:"removedAt"`
}

func (*Wheel) TableName() string {
	return "wheels"
}

// GripSample is one rate-limited engine result.
type GripSample struct {
	ID                 uint      `json:"id" gorm:"primarykey;autoIncrement"`
	SessionID          string    `json:"sessionId" gorm:"size:36;index:idx_sample_session_wheel"`
	InstanceID         int64     `json:"instanceId" gorm:"index:idx_sample_session_wheel"`
	SimTime            float64   `json:"simTime"`
	Time               time.Time `json:"time"`
	ForwardSlip        float64   `json:"forwardSlip"`
	SidewaysSlip       float64   `json:"sidewaysSlip"`
	Overload           float64   `json:"overload"`
	ForwardMultiplier  float64   `json:"forwardMultiplier"`
	SidewaysMultiplier float64   `json:"sidewaysMultiplier"`
}

func (*GripSample) TableName() string {
	return "grip_samples"
}

// SkidTrail is a closed skid mark. Path holds the contact points in world axes.
type SkidTrail struct {
	ID         uint            `json:"id" gorm:"primarykey;autoIncrement"`
	SessionID  string          `json:"sessionId" gorm:"size:36;index:idx_trail_session_wheel"`
	InstanceID int64           `json:"instanceId" gorm:"index:idx_trail_session_wheel"`
	StartedAt  float64         `json:"startedAt"`
	EndedAt    float64         `json:"endedAt"`
	Length     float64         `json:"length"`
	Path       geom.LineString `json:"path"`
	Opacities  datatypes.JSON  `json:"opacities"`
}

func (*SkidTrail) TableName() string {
	return "skid_trails"
}
