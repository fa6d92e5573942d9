package pattern

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"ham/timing"
)

// Pattern files are YAML (JSON is accepted as well). Omitted fields keep the
// defaults of DefaultStage and DefaultTrack; per-pulse and per-ratchet arrays
// are written as lists and may be shorter than eight entries.

type plainStage Stage

type stageDoc struct {
	plainStage         `yaml:",inline"`
	Ratchets           []int `yaml:"ratchets"`
	RatchetVelocity    []int `yaml:"ratchetVelocity"`
	RatchetProbability []int `yaml:"ratchetProbability"`
}

func (s *Stage) UnmarshalYAML(n *yaml.Node) error {
	doc := stageDoc{plainStage: plainStage(DefaultStage())}
	if err := n.Decode(&doc); err != nil {
		return err
	}
	st := Stage(doc.plainStage)
	if err := fill(st.Ratchets[:], doc.Ratchets, "ratchets"); err != nil {
		return err
	}
	if err := fill(st.RatchetVelocity[:], doc.RatchetVelocity, "ratchetVelocity"); err != nil {
		return err
	}
	if err := fill(st.RatchetProbability[:], doc.RatchetProbability, "ratchetProbability"); err != nil {
		return err
	}
	*s = st
	return nil
}

type plainTrack Track

type trackDoc struct {
	plainTrack `yaml:",inline"`
	Stages     []Stage `yaml:"stages"`
}

func (t *Track) UnmarshalYAML(n *yaml.Node) error {
	def := DefaultTrack(0)
	doc := trackDoc{plainTrack: plainTrack(def)}
	if err := n.Decode(&doc); err != nil {
		return err
	}
	if len(doc.Stages) > timing.MaxStages {
		return fmt.Errorf("track %q: %d stages, at most %d", doc.Name, len(doc.Stages), timing.MaxStages)
	}
	tr := Track(doc.plainTrack)
	tr.Stages = def.Stages
	copy(tr.Stages[:], doc.Stages)
	*t = tr
	return nil
}

type plainPattern Pattern

type patternDoc struct {
	plainPattern `yaml:",inline"`
	Tracks       []Track `yaml:"tracks"`
}

func (p *Pattern) UnmarshalYAML(n *yaml.Node) error {
	doc := patternDoc{plainPattern: plainPattern{LengthBars: DefaultLengthBars}}
	if err := n.Decode(&doc); err != nil {
		return err
	}
	if len(doc.Tracks) > timing.MaxTracks {
		return fmt.Errorf("pattern %q: %d tracks, at most %d", doc.Name, len(doc.Tracks), timing.MaxTracks)
	}
	pat := Pattern(doc.plainPattern)
	pat.NumTracks = len(doc.Tracks)
	for i := range pat.Tracks {
		if i < len(doc.Tracks) {
			pat.Tracks[i] = doc.Tracks[i]
		} else {
			pat.Tracks[i] = DefaultTrack(i + 1)
		}
		if pat.Tracks[i].Channel == 0 {
			pat.Tracks[i].Channel = i + 1
		}
	}
	*p = pat
	return nil
}

func fill(dst, src []int, field string) error {
	if len(src) > len(dst) {
		return fmt.Errorf("%s: %d values, at most %d", field, len(src), len(dst))
	}
	copy(dst, src)
	return nil
}

// Decode reads one or more patterns from r. A document may hold a single
// pattern or a list under "patterns".
func Decode(r io.Reader) ([]*Pattern, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var bank struct {
		Patterns []*Pattern `yaml:"patterns"`
	}
	if err := yaml.Unmarshal(data, &bank); err == nil && len(bank.Patterns) > 0 {
		for _, p := range bank.Patterns {
			p.Normalize()
		}
		return bank.Patterns, nil
	}

	var p Pattern
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode pattern: %w", err)
	}
	p.Normalize()
	return []*Pattern{&p}, nil
}

// LoadFile reads patterns from a YAML or JSON file.
func LoadFile(path string) ([]*Pattern, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	patterns, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return patterns, nil
}
