package gnucross

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Manifest describes the toolchain last installed into a tree.
type Manifest struct {
	RunID     string       `yaml:"run_id"`
	Version   string       `yaml:"gnucross_version"`
	Build     string       `yaml:"build"`
	Host      string       `yaml:"host"`
	Target    string       `yaml:"target"`
	Relations []string     `yaml:"relations"`
	Jobs      int          `yaml:"jobs"`
	Completed time.Time    `yaml:"completed"`
	Steps     []StepRecord `yaml:"steps,omitempty"`
}

// NewManifest summarizes a finished run.
func NewManifest(runID string, t Triples, jobs int, steps []StepRecord) *Manifest {
	m := &Manifest{
		RunID:     runID,
		Version:   version,
		Build:     t.Build,
		Host:      t.Host,
		Target:    t.Target,
		Jobs:      jobs,
		Completed: time.Now().UTC(),
		Steps:     steps,
	}
	for _, rel := range Resolve(t) {
		m.Relations = append(m.Relations, rel.String())
	}
	return m
}

// WriteManifest stores m at path, replacing any previous manifest atomically.
func WriteManifest(path string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ReadManifest loads a manifest written by WriteManifest.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
