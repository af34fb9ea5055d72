package sqlstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/EllipseGrip/extension/internal/geo"
	"github.com/EllipseGrip/extension/pkg/core"
)

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// CoreToWheel converts a core wheel record to its table row.
func CoreToWheel(w core.WheelRecord) (Wheel, error) {
	baseline, err := json.Marshal(w.Baseline)
	if err != nil {
		return Wheel{}, fmt.Errorf("failed to marshal baseline: %w", err)
	}
	return Wheel{
		SessionID:             w.SessionID,
		InstanceID:            w.InstanceID,
		Name:                  w.Name,
		ForwardExtremumSlip:   w.Ellipse.ForwardExtremumSlip,
		ForwardAsymptoteSlip:  w.Ellipse.ForwardAsymptoteSlip,
		SidewaysExtremumSlip:  w.Ellipse.SidewaysExtremumSlip,
		SidewaysAsymptoteSlip: w.Ellipse.SidewaysAsymptoteSlip,
		Baseline:              baseline,
		Radius:                w.Radius,
		Thickness:             w.Thickness,
		DiscoveredAt:          w.DiscoveredAt,
		RemovedAt:             timePtr(w.RemovedAt),
	}, nil
}

// WheelToCore converts a table row back to a core wheel record.
func WheelToCore(w Wheel) (core.WheelRecord, error) {
	rec := core.WheelRecord{
		SessionID:  w.SessionID,
		InstanceID: w.InstanceID,
		Name:       w.Name,
		Ellipse: core.Ellipse{
			ForwardExtremumSlip:   w.ForwardExtremumSlip,
			SidewaysExtremumSlip:  w.SidewaysExtremumSlip,
			ForwardAsymptoteSlip:  w.ForwardAsymptoteSlip,
			SidewaysAsymptoteSlip: w.SidewaysAsymptoteSlip,
		},
		Radius:       w.Radius,
		Thickness:    w.Thickness,
		DiscoveredAt: w.DiscoveredAt,
	}
	if w.RemovedAt != nil {
		rec.RemovedAt = *w.RemovedAt
	}
	if len(w.Baseline) > 0 {
		if err := json.Unmarshal(w.Baseline, &rec.Baseline); err != nil {
			return rec, fmt.Errorf("failed to unmarshal baseline: %w", err)
		}
	}
	return rec, nil
}

// CoreToGripSample converts a core sample to its table row.
func CoreToGripSample(s core.GripSample) GripSample {
	return GripSample{
		SessionID:          s.SessionID,
		InstanceID:         s.InstanceID,
		SimTime:            s.SimTime,
		Time:               s.Time,
		ForwardSlip:        s.ForwardSlip,
		SidewaysSlip:       s.SidewaysSlip,
		Overload:           s.Overload,
		ForwardMultiplier:  s.ForwardMultiplier,
		SidewaysMultiplier: s.SidewaysMultiplier,
	}
}

// CoreToSkidTrail converts a closed core trail to its table row.
func CoreToSkidTrail(t core.SkidTrail) (SkidTrail, error) {
	ls, err := geo.TrailLineString(t.Points)
	if err != nil {
		return SkidTrail{}, err
	}
	opacities := make([]float64, len(t.Points))
	for i, p := range t.Points {
		opacities[i] = p.Opacity
	}
	raw, err := json.Marshal(opacities)
	if err != nil {
		return SkidTrail{}, fmt.Errorf("failed to marshal opacities: %w", err)
	}
	return SkidTrail{
		SessionID:  t.SessionID,
		InstanceID: t.InstanceID,
		StartedAt:  t.StartedAt,
		EndedAt:    t.EndedAt,
		Length:     geo.TrailLength(t.Points),
		Path:       ls,
		Opacities:  raw,
	}, nil
}

// SkidTrailToCore converts a table row back to a core trail.
func SkidTrailToCore(t SkidTrail) (core.SkidTrail, error) {
	out := core.SkidTrail{
		SessionID:  t.SessionID,
		InstanceID: t.InstanceID,
		StartedAt:  t.StartedAt,
		EndedAt:    t.EndedAt,
	}
	var opacities []float64
	if len(t.Opacities) > 0 {
		if err := json.Unmarshal(t.Opacities, &opacities); err != nil {
			return out, fmt.Errorf("failed to unmarshal opacities: %w", err)
		}
	}
	for i, pos := range geo.TrailPositions(t.Path) {
		p := core.SkidPoint{Position: pos}
		if i < len(opacities) {
			p.Opacity = opacities[i]
		}
		out.Points = append(out.Points, p)
	}
	return out, nil
}
