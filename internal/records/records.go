// Package records reads and writes the JSON files exchanged between the
// acquisition tools, the solver and the robot.
package records

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/cjeanneret/CubeGo/internal/cube"
)

// Default file names used by the rig.
const (
	SolutionFile    = "cube_solution.json"
	CubeStateFile   = "cube_colors.json"
	CalibrationFile = "hsv_config.json"
	ShuffleFile     = "cube_shuffle.json"
)

func load(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func save(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return os.Rename(tmp, path)
}

// ---------- Facelet/solution ----------

// Solution pairs an encoded cube with the oracle's answer.
type Solution struct {
	FaceletString string `json:"facelet_string"`
	Solution      string `json:"solution"`
}

// LoadSolution reads a facelet/solution record.
func LoadSolution(path string) (Solution, error) {
	var s Solution
	err := load(path, &s)
	return s, err
}

// SaveSolution writes a facelet/solution record.
func SaveSolution(path string, s Solution) error {
	return save(path, s)
}

// ---------- Cube state ----------

// LoadCubeState reads a face name → nine labels record.
func LoadCubeState(path string) (cube.State, error) {
	var raw map[string][]string
	if err := load(path, &raw); err != nil {
		return nil, err
	}
	return StateFromMap(raw)
}

// StateFromMap validates face names and grid sizes.
func StateFromMap(raw map[string][]string) (cube.State, error) {
	state := make(cube.State, len(raw))
	for name, labels := range raw {
		fn := cube.FaceName(name)
		if _, err := fn.Face(); err != nil {
			return nil, err
		}
		grid, err := cube.GridFromLabels(labels)
		if err != nil {
			return nil, fmt.Errorf("face %s: %w", name, err)
		}
		state[fn] = grid
	}
	return state, nil
}

// SaveCubeState writes a cube-state record.
func SaveCubeState(path string, state cube.State) error {
	raw := make(map[string][]string, len(state))
	for name, grid := range state {
		raw[string(name)] = append([]string(nil), grid[:]...)
	}
	return save(path, raw)
}

// ---------- Color calibration ----------

// HSV is a hue/saturation/value triple on the OpenCV scale
// (hue 0-179, saturation and value 0-255).
type HSV [3]int

// HSVRange is an inclusive [lower, upper] band.
type HSVRange [2]HSV

// Contains reports whether p lies inside r.
func (r HSVRange) Contains(p HSV) bool {
	for i := range p {
		if p[i] < r[0][i] || p[i] > r[1][i] {
			return false
		}
	}
	return true
}

// Tolerances applied around a picked pixel.
const (
	hueTolerance = 15
	satTolerance = 80
	valTolerance = 80
	hueMax       = 179
	satValMax    = 255
)

// RangeAround returns the band accepted around a sampled pixel.
func RangeAround(p HSV) HSVRange {
	return HSVRange{
		{max(0, p[0]-hueTolerance), max(0, p[1]-satTolerance), max(0, p[2]-valTolerance)},
		{min(hueMax, p[0]+hueTolerance), min(satValMax, p[1]+satTolerance), min(satValMax, p[2]+valTolerance)},
	}
}

// Calibration maps color labels to HSV bands. Red wraps the hue origin and
// is stored as red_low and red_high.
type Calibration map[string]HSVRange

// Add records a sampled pixel for color.
func (c Calibration) Add(color string, p HSV) {
	r := RangeAround(p)
	if color == "red" || color == "Red" {
		if p[0] < 10 || p[0] > 170 {
			c["red_low"] = r
		} else {
			c["red_high"] = r
		}
		return
	}
	c[color] = r
}

// Match returns the label of the first band containing p, in sorted key
// order. red_low and red_high both report "red".
func (c Calibration) Match(p HSV) (string, bool) {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if c[k].Contains(p) {
			if k == "red_low" || k == "red_high" {
				return "red", true
			}
			return k, true
		}
	}
	return "", false
}

// LoadCalibration reads a color-calibration record.
func LoadCalibration(path string) (Calibration, error) {
	var c Calibration
	err := load(path, &c)
	return c, err
}

// SaveCalibration writes a color-calibration record.
func SaveCalibration(path string, c Calibration) error {
	return save(path, c)
}

// ---------- Motor shuffle ----------

// Shuffle maps a motor index to a number of quarter moves.
type Shuffle map[int]int

// SaveShuffle writes a shuffle record with string motor keys.
func SaveShuffle(path string, s Shuffle) error {
	raw := make(map[string]int, len(s))
	for motor, n := range s {
		raw[strconv.Itoa(motor)] = n
	}
	return save(path, raw)
}

// LoadShuffle reads a shuffle record.
func LoadShuffle(path string) (Shuffle, error) {
	var raw map[string]int
	if err := load(path, &raw); err != nil {
		return nil, err
	}
	s := make(Shuffle, len(raw))
	for k, n := range raw {
		motor, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("shuffle key %q is not a motor index", k)
		}
		s[motor] = n
	}
	return s, nil
}
