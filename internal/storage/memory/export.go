package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/EllipseGrip/extension/internal/geo"
)

// SessionExport is the root JSON structure
type SessionExport struct {
	ExtensionVersion string      `json:"extensionVersion"`
	SessionID        string      `json:"sessionId"`
	WorldName        string      `json:"worldName"`
	StartTime        time.Time   `json:"startTime"`
	EndTime          time.Time   `json:"endTime"`
	Duration         float64     `json:"duration"`
	Wheels           []WheelJSON `json:"wheels"`
}

// WheelJSON is one wheel with its samples and trails.
// Samples rows are [simTime, fwdSlip, sideSlip, overload, fwdMul, sideMul].
type WheelJSON struct {
	ID           int64         `json:"id"`
	Name         string        `json:"name"`
	Radius       float64       `json:"radius"`
	Thickness    float64       `json:"thickness"`
	Ellipse      [4]float64    `json:"ellipse"`
	Baseline     [4]float64    `json:"baseline"`
	DiscoveredAt time.Time     `json:"discoveredAt"`
	RemovedAt    *time.Time    `json:"removedAt,omitempty"`
	PeakOverload float64       `json:"peakOverload"`
	Samples      [][]float64   `json:"samples"`
	SkidTrails   []SkidTrailJS `json:"skidTrails"`
}

// SkidTrailJS is a closed skid trail with its path as WKT
type SkidTrailJS struct {
	StartedAt float64   `json:"startedAt"`
	EndedAt   float64   `json:"endedAt"`
	Length    float64   `json:"length"`
	Path      string    `json:"path"`
	Opacities []float64 `json:"opacities"`
}

var filenameReplacer = strings.NewReplacer(" ", "_", ":", "_", "/", "_", "\\", "_")

// exportJSON writes the session data to a (optionally gzipped) JSON file
func (b *Backend) exportJSON() error {
	export := b.buildExport()

	worldName := filenameReplacer.Replace(b.session.WorldName)
	if worldName == "" {
		worldName = "session"
	}
	timestamp := b.session.StartTime.Format("20060102_150405")

	filename := fmt.Sprintf("%s_%s.json", worldName, timestamp)
	if b.cfg.CompressOutput {
		filename += ".gz"
	}
	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var err error
	if b.cfg.CompressOutput {
		err = writeGzipJSON(outputPath, export)
	} else {
		err = writeJSON(outputPath, export)
	}
	if err != nil {
		return err
	}

	b.lastExportPath = outputPath
	return nil
}

func (b *Backend) buildExport() SessionExport {
	export := SessionExport{
		ExtensionVersion: b.session.ExtensionVersion,
		SessionID:        b.session.ID,
		WorldName:        b.session.WorldName,
		StartTime:        b.session.StartTime,
		EndTime:          b.session.EndTime,
		Wheels:           make([]WheelJSON, 0, len(b.order)),
	}
	if !b.session.EndTime.IsZero() {
		export.Duration = b.session.EndTime.Sub(b.session.StartTime).Seconds()
	}

	for _, id := range b.order {
		w := b.wheels[id]
		rec := w.Record
		wj := WheelJSON{
			ID:        rec.InstanceID,
			Name:      rec.Name,
			Radius:    rec.Radius,
			Thickness: rec.Thickness,
			Ellipse: [4]float64{
				rec.Ellipse.ForwardExtremumSlip,
				rec.Ellipse.SidewaysExtremumSlip,
				rec.Ellipse.ForwardAsymptoteSlip,
				rec.Ellipse.SidewaysAsymptoteSlip,
			},
			Baseline: [4]float64{
				rec.Baseline.ForwardExtremumValue,
				rec.Baseline.ForwardAsymptoteValue,
				rec.Baseline.SidewaysExtremumValue,
				rec.Baseline.SidewaysAsymptoteValue,
			},
			DiscoveredAt: rec.DiscoveredAt,
			Samples:      make([][]float64, 0, len(w.Samples)),
			SkidTrails:   make([]SkidTrailJS, 0, len(w.Trails)),
		}
		if !rec.RemovedAt.IsZero() {
			removed := rec.RemovedAt
			wj.RemovedAt = &removed
		}

		for _, s := range w.Samples {
			wj.Samples = append(wj.Samples, []float64{
				s.SimTime,
				s.ForwardSlip,
				s.SidewaysSlip,
				s.Overload,
				s.ForwardMultiplier,
				s.SidewaysMultiplier,
			})
			if s.Overload > wj.PeakOverload {
				wj.PeakOverload = s.Overload
			}
		}

		for _, t := range w.Trails {
			tj := SkidTrailJS{
				StartedAt: t.StartedAt,
				EndedAt:   t.EndedAt,
				Length:    geo.TrailLength(t.Points),
				Opacities: make([]float64, len(t.Points)),
			}
			// single-point trails have no line string; keep their opacity only
			if wkt, err := geo.TrailWKT(t.Points); err == nil {
				tj.Path = wkt
			}
			for i, p := range t.Points {
				tj.Opacities[i] = p.Opacity
			}
			wj.SkidTrails = append(wj.SkidTrails, tj)
		}

		export.Wheels = append(export.Wheels, wj)
	}

	return export
}

func writeJSON(path string, data SessionExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	return encoder.Encode(data)
}

func writeGzipJSON(path string, data SessionExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	defer gzWriter.Close()

	encoder := json.NewEncoder(gzWriter)
	return encoder.Encode(data)
}
