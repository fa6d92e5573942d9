package engines

// Scale definitions - intervals from root (semitones), one octave.
var scales = map[string][]int{
	"chromatic":         {0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},
	"major":             {0, 2, 4, 5, 7, 9, 11},
	"minor":             {0, 2, 3, 5, 7, 8, 10},
	"pentatonic":        {0, 2, 4, 7, 9},
	"dorian":            {0, 2, 3, 5, 7, 9, 10},
	"phrygian":          {0, 1, 3, 5, 7, 8, 10},
	"lydian":            {0, 2, 4, 6, 7, 9, 11},
	"mixolydian":        {0, 2, 4, 5, 7, 9, 10},
	"locrian":           {0, 1, 3, 5, 6, 8, 10},
	"harmonic-minor":    {0, 2, 3, 5, 7, 8, 11},
	"melodic-minor":     {0, 2, 3, 5, 7, 9, 11},
	"blues":             {0, 3, 5, 6, 7, 10},
	"whole-tone":        {0, 2, 4, 6, 8, 10},
	"dim-half-whole":    {0, 1, 3, 4, 6, 7, 9, 10},
	"dim-whole-half":    {0, 2, 3, 5, 6, 8, 9, 11},
	"hungarian-minor":   {0, 2, 3, 6, 7, 8, 11},
	"double-harmonic":   {0, 1, 4, 5, 7, 8, 11},
	"phrygian-dominant": {0, 1, 4, 5, 7, 8, 10},
	"hirajoshi":         {0, 2, 3, 7, 8},
	"in-sen":            {0, 1, 5, 7, 10},
	"yo":                {0, 2, 4, 7, 9},
	"bhairavi":          {0, 1, 3, 5, 7, 8, 10},
}

// ScaleNames lists the known scales in display order.
var ScaleNames = []string{
	"chromatic", "major", "minor", "pentatonic",
	"dorian", "phrygian", "lydian", "mixolydian", "locrian",
	"harmonic-minor", "melodic-minor", "blues", "whole-tone",
	"dim-half-whole", "dim-whole-half", "hungarian-minor", "double-harmonic",
	"phrygian-dominant", "hirajoshi", "in-sen", "yo", "bhairavi",
}

// ScaleIntervals looks a scale up by its lower-case name.
func ScaleIntervals(name string) ([]int, bool) {
	iv, ok := scales[name]
	return iv, ok
}

// Mask folds semitone offsets into a 12-bit pitch class set.
func Mask(offsets []int) uint16 {
	var m uint16
	for _, o := range offsets {
		m |= 1 << uint(mod(o, 12))
	}
	return m
}

func mod(a, n int) int {
	a %= n
	if a < 0 {
		a += n
	}
	return a
}
