package scan

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cjeanneret/CubeGo/internal/cube"
	"github.com/cjeanneret/CubeGo/internal/records"
)

func gridDetections() []Detection {
	// Shuffled 3x3 layout with a little jitter on y.
	return []Detection{
		{X: 210, Y: 305, Color: "i"},
		{X: 10, Y: 12, Color: "a"},
		{X: 110, Y: 160, Color: "e"},
		{X: 210, Y: 8, Color: "c"},
		{X: 12, Y: 150, Color: "d"},
		{X: 110, Y: 0, Color: "b"},
		{X: 205, Y: 148, Color: "f"},
		{X: 8, Y: 300, Color: "g"},
		{X: 100, Y: 310, Color: "h"},
	}
}

func TestOrderDetections(t *testing.T) {
	got := OrderDetections(gridDetections(), DefaultRowThreshold)
	want := "abcdefghi"
	var s string
	for _, l := range got {
		s += l
	}
	if s != want {
		t.Errorf("OrderDetections = %s, want %s", s, want)
	}
}

func TestOrderDetections_Empty(t *testing.T) {
	if got := OrderDetections(nil, DefaultRowThreshold); len(got) != 0 {
		t.Errorf("OrderDetections(nil) = %v", got)
	}
}

func TestFaceFromDetections(t *testing.T) {
	dets := append(gridDetections(), Detection{X: 0, Y: 400, Color: "extra"})
	grid, err := FaceFromDetections(dets, DefaultRowThreshold)
	if err != nil {
		t.Fatalf("FaceFromDetections: %v", err)
	}
	if grid.Center() != "e" || grid[8] != "i" {
		t.Errorf("grid = %v", grid)
	}

	_, err = FaceFromDetections(gridDetections()[:8], DefaultRowThreshold)
	if !errors.Is(err, cube.ErrInvalidGridShape) {
		t.Errorf("8 detections: error = %v, want ErrInvalidGridShape", err)
	}
}

func TestClassify(t *testing.T) {
	cal := records.Calibration{
		"white":   {{0, 0, 200}, {179, 40, 255}},
		"red_low": {{0, 120, 120}, {10, 255, 255}},
	}
	dets := Classify([]Sample{
		{X: 1, Y: 1, HSV: records.HSV{90, 10, 230}},
		{X: 2, Y: 1, HSV: records.HSV{5, 200, 200}},
		{X: 3, Y: 1, HSV: records.HSV{90, 200, 50}},
	}, cal)
	if len(dets) != 2 {
		t.Fatalf("Classify kept %d samples, want 2", len(dets))
	}
	if dets[0].Color != "white" || dets[1].Color != "red" {
		t.Errorf("colors = %s,%s want white,red", dets[0].Color, dets[1].Color)
	}
}

func sixColorCalibration() records.Calibration {
	return records.Calibration{
		"blue":    {{100, 100, 100}, {130, 255, 255}},
		"green":   {{50, 100, 100}, {70, 255, 255}},
		"orange":  {{11, 100, 100}, {25, 255, 255}},
		"red_low": {{0, 100, 100}, {10, 255, 255}},
		"white":   {{0, 0, 200}, {179, 40, 255}},
		"yellow":  {{26, 100, 100}, {40, 255, 255}},
	}
}

// solvedSamples reads a solved cube with the default palette.
func solvedSamples() FaceSamples {
	hsv := map[string]records.HSV{
		"green": {60, 200, 200}, "orange": {18, 200, 200}, "white": {0, 10, 230},
		"blue": {115, 200, 200}, "red": {5, 200, 200}, "yellow": {33, 200, 200},
	}
	fs := make(FaceSamples)
	for i, name := range cube.FaceNames {
		color := cube.DefaultPalette[cube.Faces[i]]
		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				fs[name] = append(fs[name], Sample{X: 100 * c, Y: 100*r + c, HSV: hsv[color]})
			}
		}
	}
	return fs
}

func TestFaceSamples_State(t *testing.T) {
	state, err := solvedSamples().State(sixColorCalibration(), DefaultRowThreshold)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	f, err := cube.Encode(state, cube.EncodeOptions{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if f != cube.Solved {
		t.Errorf("facelets = %s, want solved", f)
	}
}

func TestFaceSamples_MissingFace(t *testing.T) {
	fs := solvedSamples()
	delete(fs, cube.NameBack)
	if _, err := fs.State(sixColorCalibration(), DefaultRowThreshold); !errors.Is(err, cube.ErrMissingFace) {
		t.Errorf("error = %v, want ErrMissingFace", err)
	}
}

func TestFaceSamples_UnclassifiedStickers(t *testing.T) {
	fs := solvedSamples()
	// Two dark samples match no band and leave the face short.
	fs[cube.NameFront][0].HSV = records.HSV{0, 0, 10}
	fs[cube.NameFront][4].HSV = records.HSV{0, 0, 10}
	if _, err := fs.State(sixColorCalibration(), DefaultRowThreshold); !errors.Is(err, cube.ErrInvalidGridShape) {
		t.Errorf("error = %v, want ErrInvalidGridShape", err)
	}
}

func TestLoadFaceSamples(t *testing.T) {
	path := filepath.Join(t.TempDir(), "samples.json")
	data, err := json.Marshal(solvedSamples())
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	fs, err := LoadFaceSamples(path)
	if err != nil {
		t.Fatalf("LoadFaceSamples: %v", err)
	}
	if len(fs) != 6 || len(fs[cube.NameTop]) != 9 || fs[cube.NameTop][4].HSV != (records.HSV{60, 200, 200}) {
		t.Errorf("loaded %+v", fs[cube.NameTop])
	}

	if _, err := LoadFaceSamples(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
