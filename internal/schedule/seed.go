package schedule

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// SeedFile is the YAML layout attendancectl seed reads.
type SeedFile struct {
	Classes   []Class    `yaml:"classes"`
	Schedules []Schedule `yaml:"schedules"`
}

// LoadSeed decodes and validates a seed file.
func LoadSeed(r io.Reader) (SeedFile, error) {
	var f SeedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return SeedFile{}, fmt.Errorf("decode seed: %w", err)
	}

	known := make(map[int64]bool, len(f.Classes))
	for _, c := range f.Classes {
		if c.ClassID <= 0 || c.ClassCode == "" {
			return SeedFile{}, fmt.Errorf("class %d: class_id and class_code are required", c.ClassID)
		}
		known[c.ClassID] = true
	}
	for i := range f.Schedules {
		s := &f.Schedules[i]
		if err := s.Validate(); err != nil {
			return SeedFile{}, err
		}
		if !known[s.ClassID] {
			return SeedFile{}, fmt.Errorf("schedule %d: class %d is not in the file", s.ScheduleID, s.ClassID)
		}
	}
	return f, nil
}
