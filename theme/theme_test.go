package theme

import (
	"strings"
	"testing"
)

const gpl = `GIMP Palette
Name: ramp
Columns: 2
# black to white
0 0 0 black
255 255 255 white
300 0 0 out of range
`

func TestParseGPL(t *testing.T) {
	p, err := ParseGPL(strings.NewReader(gpl))
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "ramp" || len(p.Colors) != 2 {
		t.Fatalf("palette = %+v", p)
	}
	if _, err := ParseGPL(strings.NewReader("GIMP Palette\n")); err == nil {
		t.Fatal("accepted a palette without colours")
	}
}

func TestLookup(t *testing.T) {
	p, _ := ParseGPL(strings.NewReader(gpl))
	tests := []struct {
		norm float64
		want RGB
	}{
		{-1, RGB{0, 0, 0}},
		{0.5, RGB{127, 127, 127}},
		{2, RGB{255, 255, 255}},
	}
	for _, tt := range tests {
		if got := p.Lookup(tt.norm); got != tt.want {
			t.Errorf("Lookup(%v) = %v, want %v", tt.norm, got, tt.want)
		}
	}
}

func TestThemeColors(t *testing.T) {
	th := New(nil)
	if th.Palette.Name != "plasma" {
		t.Fatalf("default palette = %s", th.Palette.Name)
	}
	if got := th.Color(0); got != "#0d0887" {
		t.Fatalf("Color(0) = %s", got)
	}
	if th.Load(2) != th.Success() || th.Load(0.1) != th.FG() {
		t.Fatal("load colours")
	}
}
