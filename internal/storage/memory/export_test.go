package memory

import (
	"compress/gzip"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/EllipseGrip/extension/internal/config"
	"github.com/EllipseGrip/extension/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func populated(t *testing.T, cfg config.MemoryConfig) *Backend {
	t.Helper()
	b := New(cfg)
	require.NoError(t, b.StartSession(testSession()))
	require.NoError(t, b.RecordWheel(&core.WheelRecord{
		InstanceID:   1,
		Name:         "FL",
		Radius:       0.35,
		Thickness:    0.2,
		Ellipse:      core.Ellipse{ForwardExtremumSlip: 0.2, SidewaysExtremumSlip: 0.3, ForwardAsymptoteSlip: 0.4, SidewaysAsymptoteSlip: 0.5},
		Baseline:     core.Baseline{ForwardExtremumValue: 1.5, ForwardAsymptoteValue: 1.125, SidewaysExtremumValue: 3, SidewaysAsymptoteValue: 2.25},
		DiscoveredAt: t0,
	}))
	require.NoError(t, b.RecordSamples([]core.GripSample{
		{InstanceID: 1, SimTime: 0.1, ForwardSlip: 0.3, Overload: 0.5, ForwardMultiplier: 0.75, SidewaysMultiplier: 1},
		{InstanceID: 1, SimTime: 0.2, ForwardSlip: 0.35, Overload: 0.75, ForwardMultiplier: 0.625, SidewaysMultiplier: 1},
	}))
	require.NoError(t, b.RecordSkidTrail(&core.SkidTrail{
		InstanceID: 1,
		StartedAt:  0.1,
		EndedAt:    0.2,
		Points: []core.SkidPoint{
			{Position: core.Vector3{X: 0, Y: 0, Z: 0}, Opacity: 0.5},
			{Position: core.Vector3{X: 0, Y: 0, Z: 2}, Opacity: 1},
		},
	}))
	return b
}

func TestBuildExport(t *testing.T) {
	b := populated(t, config.MemoryConfig{})
	require.NoError(t, b.EndSession(t0.Add(90*time.Second)))

	export := b.buildExport()
	assert.Equal(t, "1.2.0", export.ExtensionVersion)
	assert.Equal(t, "Test Track", export.WorldName)
	assert.Equal(t, 90.0, export.Duration)
	require.Len(t, export.Wheels, 1)

	w := export.Wheels[0]
	assert.Equal(t, int64(1), w.ID)
	assert.Equal(t, [4]float64{0.2, 0.3, 0.4, 0.5}, w.Ellipse)
	assert.Equal(t, [4]float64{1.5, 1.125, 3, 2.25}, w.Baseline)
	assert.Equal(t, 0.75, w.PeakOverload)
	assert.Nil(t, w.RemovedAt)

	require.Len(t, w.Samples, 2)
	assert.Equal(t, []float64{0.1, 0.3, 0, 0.5, 0.75, 1}, w.Samples[0])

	require.Len(t, w.SkidTrails, 1)
	trail := w.SkidTrails[0]
	assert.Equal(t, 2.0, trail.Length)
	assert.True(t, strings.HasPrefix(trail.Path, "LINESTRING Z"), trail.Path)
	assert.Equal(t, []float64{0.5, 1}, trail.Opacities)
}

func TestBuildExport_SinglePointTrail(t *testing.T) {
	b := New(config.MemoryConfig{})
	require.NoError(t, b.StartSession(testSession()))
	require.NoError(t, b.RecordSkidTrail(&core.SkidTrail{
		InstanceID: 3,
		Points:     []core.SkidPoint{{Opacity: 0.2}},
	}))

	export := b.buildExport()
	require.Len(t, export.Wheels, 1)
	trail := export.Wheels[0].SkidTrails[0]
	assert.Empty(t, trail.Path)
	assert.Equal(t, []float64{0.2}, trail.Opacities)
	assert.Equal(t, 0.0, export.Duration, "no duration before the session ends")
}

func TestExportJSON(t *testing.T) {
	dir := t.TempDir()
	b := populated(t, config.MemoryConfig{OutputDir: dir})
	require.NoError(t, b.EndSession(t0.Add(time.Minute)))

	path := b.ExportedFilePath()
	assert.Equal(t, filepath.Join(dir, "Test_Track_20260301_120000.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var export SessionExport
	require.NoError(t, json.Unmarshal(data, &export))
	assert.Equal(t, testSession().ID, export.SessionID)
	require.Len(t, export.Wheels, 1)
	assert.Len(t, export.Wheels[0].Samples, 2)
}

func TestExportGzipJSON(t *testing.T) {
	dir := t.TempDir()
	b := populated(t, config.MemoryConfig{OutputDir: dir, CompressOutput: true})
	require.NoError(t, b.EndSession(t0.Add(time.Minute)))

	path := b.ExportedFilePath()
	require.True(t, strings.HasSuffix(path, ".json.gz"), path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	defer gz.Close()

	var export SessionExport
	require.NoError(t, json.NewDecoder(gz).Decode(&export))
	assert.Equal(t, "Test Track", export.WorldName)
}

func TestFilenameGeneration(t *testing.T) {
	tests := []struct {
		worldName string
		want      string
	}{
		{"Simple", "Simple_20260301_120000.json"},
		{"Name:With:Colons", "Name_With_Colons_20260301_120000.json"},
		{"Name With Spaces", "Name_With_Spaces_20260301_120000.json"},
		{"a/b\\c", "a_b_c_20260301_120000.json"},
		{"", "session_20260301_120000.json"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			dir := t.TempDir()
			b := New(config.MemoryConfig{OutputDir: dir})
			s := testSession()
			s.WorldName = tt.worldName
			require.NoError(t, b.StartSession(s))
			require.NoError(t, b.EndSession(t0))

			assert.Equal(t, filepath.Join(dir, tt.want), b.ExportedFilePath())
		})
	}
}

func TestExportCreatesOutputDir(t *testing.T) {
	nested := filepath.Join(t.TempDir(), "nested", "output", "dir")
	b := populated(t, config.MemoryConfig{OutputDir: nested})
	require.NoError(t, b.EndSession(t0))

	_, err := os.Stat(nested)
	require.NoError(t, err)
	matches, _ := filepath.Glob(filepath.Join(nested, "*.json"))
	assert.Len(t, matches, 1)
}

func TestExport_RemovedWheel(t *testing.T) {
	b := populated(t, config.MemoryConfig{})
	require.NoError(t, b.RemoveWheel(1, t0.Add(time.Second)))

	export := b.buildExport()
	require.NotNil(t, export.Wheels[0].RemovedAt)
	assert.Equal(t, t0.Add(time.Second), *export.Wheels[0].RemovedAt)
}
