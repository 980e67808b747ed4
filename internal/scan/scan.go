// Package scan turns per-face sticker detections into ordered face grids.
// Detection itself happens outside this module.
package scan

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/cjeanneret/CubeGo/internal/cube"
	"github.com/cjeanneret/CubeGo/internal/records"
)

// DefaultRowThreshold is the vertical distance, in pixels, within which
// detections belong to the same row.
const DefaultRowThreshold = 50

// Detection is one sticker found in a frame: the top-left corner of its
// bounding box and its color label.
type Detection struct {
	X, Y  int
	Color string
}

// OrderDetections sorts detections into reading order. They are sorted by
// y, a new row starts whenever y moves more than threshold away from the
// first detection of the current row, and each row is sorted by x.
func OrderDetections(dets []Detection, threshold int) []string {
	sorted := append([]Detection(nil), dets...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Y < sorted[j].Y })

	var rows [][]Detection
	var row []Detection
	var rowY int
	for _, d := range sorted {
		if len(row) > 0 && abs(d.Y-rowY) > threshold {
			rows = append(rows, row)
			row = nil
		}
		if len(row) == 0 {
			rowY = d.Y
		}
		row = append(row, d)
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	labels := make([]string, 0, len(sorted))
	for _, r := range rows {
		sort.SliceStable(r, func(i, j int) bool { return r[i].X < r[j].X })
		for _, d := range r {
			labels = append(labels, d.Color)
		}
	}
	return labels
}

// FaceFromDetections orders detections and keeps the first nine.
func FaceFromDetections(dets []Detection, threshold int) (cube.FaceGrid, error) {
	labels := OrderDetections(dets, threshold)
	if len(labels) < 9 {
		return cube.FaceGrid{}, fmt.Errorf("%w: detected %d stickers", cube.ErrInvalidGridShape, len(labels))
	}
	return cube.GridFromLabels(labels[:9])
}

// Sample is one pixel read at a detection, to be classified by a
// calibration.
type Sample struct {
	X   int         `json:"x"`
	Y   int         `json:"y"`
	HSV records.HSV `json:"hsv"`
}

// Classify labels samples with cal. Samples matching no band are dropped.
func Classify(samples []Sample, cal records.Calibration) []Detection {
	dets := make([]Detection, 0, len(samples))
	for _, s := range samples {
		color, ok := cal.Match(s.HSV)
		if !ok {
			continue
		}
		dets = append(dets, Detection{X: s.X, Y: s.Y, Color: color})
	}
	return dets
}

// FaceSamples holds the samples read on each face, keyed by face name.
type FaceSamples map[cube.FaceName][]Sample

// LoadFaceSamples reads a face name → samples JSON file.
func LoadFaceSamples(path string) (FaceSamples, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var fs FaceSamples
	if err := json.Unmarshal(data, &fs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return fs, nil
}

// State classifies every face with cal and orders it into a grid. All six
// faces must be present.
func (fs FaceSamples) State(cal records.Calibration, threshold int) (cube.State, error) {
	state := make(cube.State, len(cube.FaceNames))
	for _, name := range cube.FaceNames {
		samples, ok := fs[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", cube.ErrMissingFace, name)
		}
		grid, err := FaceFromDetections(Classify(samples, cal), threshold)
		if err != nil {
			return nil, fmt.Errorf("face %s: %w", name, err)
		}
		state[name] = grid
	}
	return state, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
