package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ScheduleDecl is one declarative schedule entry from the schedules file.
type ScheduleDecl struct {
	ID         string `yaml:"id,omitempty"`
	Title      string `yaml:"title"`
	Expression string `yaml:"expression"`
	MaxRuns    int    `yaml:"max_runs,omitempty"`
	Disabled   bool   `yaml:"disabled,omitempty"`
}

type schedulesFile struct {
	Schedules []ScheduleDecl `yaml:"schedules"`
}

// LoadSchedules reads the declarative schedules YAML file. A missing file
// yields no entries.
func LoadSchedules(path string) ([]ScheduleDecl, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read schedules: %w", err)
	}

	var f schedulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("unmarshal schedules: %w", err)
	}

	for i, d := range f.Schedules {
		if d.Expression == "" {
			return nil, fmt.Errorf("schedules[%d]: missing expression", i)
		}
	}
	return f.Schedules, nil
}
