package translate

import (
	"testing"

	"github.com/cjeanneret/CubeGo/internal/config"
	"github.com/cjeanneret/CubeGo/internal/cube"
	"github.com/cjeanneret/CubeGo/internal/protocol"
)

func newDefaultTable(t *testing.T) *Table {
	t.Helper()
	tbl, err := NewTable(DefaultOptions())
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	return tbl
}

func TestTable_CoversAllMoves(t *testing.T) {
	tbl := newDefaultTable(t)
	if tbl.Len() != 18 {
		t.Fatalf("table has %d entries, want 18", tbl.Len())
	}
	seen := make(map[protocol.Command]string)
	for _, m := range cube.AllMoves() {
		c, ok := tbl.Lookup(m.Notation())
		if !ok {
			t.Errorf("token %s missing", m)
			continue
		}
		if prev, dup := seen[c]; dup {
			t.Errorf("tokens %s and %s share command %s", prev, m, c)
		}
		seen[c] = m.Notation()
	}
}

func TestTable_ReferenceMapping(t *testing.T) {
	tbl := newDefaultTable(t)
	cases := []struct {
		token string
		want  protocol.Command
	}{
		{"U", protocol.Command{Motor: 0, Sense: protocol.CW, Turns: 2}},
		{"U'", protocol.Command{Motor: 0, Sense: protocol.CCW, Turns: 2}},
		{"U2", protocol.Command{Motor: 0, Sense: protocol.CW, Turns: 4}},
		{"R", protocol.Command{Motor: 1, Sense: protocol.CW, Turns: 2}},
		{"F'", protocol.Command{Motor: 2, Sense: protocol.CCW, Turns: 2}},
		{"D2", protocol.Command{Motor: 3, Sense: protocol.CW, Turns: 4}},
		{"L", protocol.Command{Motor: 4, Sense: protocol.CW, Turns: 2}},
		{"B'", protocol.Command{Motor: 5, Sense: protocol.CCW, Turns: 2}},
	}
	for _, tc := range cases {
		got, ok := tbl.Lookup(tc.token)
		if !ok || got != tc.want {
			t.Errorf("Lookup(%q) = %v,%v want %v", tc.token, got, ok, tc.want)
		}
	}
}

func TestTable_Stable(t *testing.T) {
	a, b := newDefaultTable(t), newDefaultTable(t)
	for _, m := range cube.AllMoves() {
		ca, _ := a.Lookup(m.Notation())
		cb, _ := b.Lookup(m.Notation())
		if ca != cb {
			t.Errorf("token %s: %s vs %s", m, ca, cb)
		}
	}
}

func TestTranslate_SkipsUnknown(t *testing.T) {
	tbl := newDefaultTable(t)
	cmds, skipped := tbl.Translate([]string{"R", "x", "U'", "M2", "F2", "r"})
	want := []string{"M1_CW_2", "M0_CCW_2", "M2_CW_4"}
	if len(cmds) != len(want) {
		t.Fatalf("got %d commands, want %d", len(cmds), len(want))
	}
	for i, c := range cmds {
		if c.String() != want[i] {
			t.Errorf("cmds[%d] = %s, want %s", i, c, want[i])
		}
	}
	if len(skipped) != 3 || skipped[0] != "x" || skipped[1] != "M2" || skipped[2] != "r" {
		t.Errorf("skipped = %v, want [x M2 r]", skipped)
	}
}

func TestTranslate_Empty(t *testing.T) {
	cmds, skipped := newDefaultTable(t).Translate(nil)
	if len(cmds) != 0 || len(skipped) != 0 {
		t.Errorf("empty input gave %v / %v", cmds, skipped)
	}
}

func TestNewTable_InvalidTurns(t *testing.T) {
	opts := DefaultOptions()
	opts.HalfTurns = 0
	if _, err := NewTable(opts); err == nil {
		t.Error("expected error for zero half turns")
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := &config.Config{
		Mechanics: config.MechanicsConfig{QuarterTurnBaseTurns: 1, HalfTurnBaseTurns: 2},
		Motors: []config.MotorConfig{
			{Face: "F"}, {Face: "U"},
		},
	}
	tbl, err := NewTable(OptionsFromConfig(cfg))
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	if tbl.Len() != 6 {
		t.Errorf("two motors should give 6 entries, got %d", tbl.Len())
	}
	if c, _ := tbl.Lookup("F2"); c != (protocol.Command{Motor: 0, Sense: protocol.CW, Turns: 2}) {
		t.Errorf("F2 -> %s", c)
	}
	if c, _ := tbl.Lookup("U'"); c != (protocol.Command{Motor: 1, Sense: protocol.CCW, Turns: 1}) {
		t.Errorf("U' -> %s", c)
	}
	if _, ok := tbl.Lookup("R"); ok {
		t.Error("R has no motor and must be unknown")
	}
}
