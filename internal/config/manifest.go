package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"go.ngs.io/storage-anomaly/internal/adapter/store/gridded"
	"go.ngs.io/storage-anomaly/internal/domain"
)

// GRACESourceName is the store name of the GRACE input.
const GRACESourceName = "GRC"

// DefaultGRACEVariable is the GRACE mascon variable name.
const DefaultGRACEVariable = "lwe_thickness"

// GRACEInput locates the GRACE total water storage file.
type GRACEInput struct {
	Path      string `toml:"path"`
	ScalePath string `toml:"scale_path"`
	Variable  string `toml:"variable"`

	// RegridScale resamples a scale grid defined on other coordinates.
	RegridScale bool `toml:"regrid_scale"`
}

// LDASInput locates one land surface model output file.
type LDASInput struct {
	Model string `toml:"model"`
	Path  string `toml:"path"`
}

// RegionInput locates one region boundary file.
type RegionInput struct {
	Name string `toml:"name"`
	Path string `toml:"path"`
}

// OutputConfig controls where results are written.
type OutputConfig struct {
	Dir     string `toml:"dir"`
	Gridded bool   `toml:"gridded"`
}

// Manifest describes one batch run.
type Manifest struct {
	MissingPolicy string        `toml:"missing_policy"`
	Workers       int           `toml:"workers"`
	GRACE         GRACEInput    `toml:"grace"`
	LDAS          []LDASInput   `toml:"ldas"`
	Regions       []RegionInput `toml:"region"`
	Output        OutputConfig  `toml:"output"`

	// Policy is MissingPolicy parsed by Validate.
	Policy domain.MissingPolicy `toml:"-"`
}

// LoadManifest decodes a TOML manifest. Relative paths are resolved
// against the manifest's directory.
func LoadManifest(path string) (*Manifest, error) {
	var m Manifest
	md, err := toml.DecodeFile(path, &m)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode manifest %s: %v", domain.ErrInputValidation, path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%w: unknown manifest keys: %s", domain.ErrInputValidation, strings.Join(keys, ", "))
	}

	base := filepath.Dir(path)
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	m.GRACE.Path = resolve(m.GRACE.Path)
	m.GRACE.ScalePath = resolve(m.GRACE.ScalePath)
	for i := range m.LDAS {
		m.LDAS[i].Path = resolve(m.LDAS[i].Path)
	}
	for i := range m.Regions {
		m.Regions[i].Path = resolve(m.Regions[i].Path)
	}
	if m.Output.Dir == "" {
		m.Output.Dir = "output"
	}
	m.Output.Dir = resolve(m.Output.Dir)

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return &m, nil
}

// Validate checks required paths, model tags and the missing policy, and
// fills defaults.
func (m *Manifest) Validate() error {
	policy, err := domain.ParseMissingPolicy(m.MissingPolicy)
	if err != nil {
		return err
	}
	m.Policy = policy

	if m.GRACE.Path == "" {
		return fmt.Errorf("%w: grace.path is required", domain.ErrInputValidation)
	}
	if m.GRACE.Variable == "" {
		m.GRACE.Variable = DefaultGRACEVariable
	}
	seen := make(map[domain.Model]bool)
	for i, l := range m.LDAS {
		model, err := domain.ParseModel(l.Model)
		if err != nil {
			return fmt.Errorf("ldas[%d]: %w", i, err)
		}
		if seen[model] {
			return fmt.Errorf("%w: ldas model %s listed twice", domain.ErrInputValidation, model)
		}
		seen[model] = true
		m.LDAS[i].Model = string(model)
		if l.Path == "" {
			return fmt.Errorf("%w: ldas[%d].path is required", domain.ErrInputValidation, i)
		}
	}
	if len(m.Regions) == 0 {
		return fmt.Errorf("%w: at least one region is required", domain.ErrInputValidation)
	}
	names := make(map[string]bool)
	for i, r := range m.Regions {
		if r.Path == "" {
			return fmt.Errorf("%w: region[%d].path is required", domain.ErrInputValidation, i)
		}
		if r.Name == "" {
			m.Regions[i].Name = strings.TrimSuffix(filepath.Base(r.Path), filepath.Ext(r.Path))
		}
		if names[m.Regions[i].Name] {
			return fmt.Errorf("%w: region %s listed twice", domain.ErrInputValidation, m.Regions[i].Name)
		}
		names[m.Regions[i].Name] = true
	}
	if m.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative", domain.ErrInputValidation)
	}
	return nil
}

// Models returns the validated model tags in manifest order.
func (m *Manifest) Models() []domain.Model {
	models := make([]domain.Model, len(m.LDAS))
	for i, l := range m.LDAS {
		models[i] = domain.Model(l.Model)
	}
	return models
}

// Sources lists the gridded inputs of the run. Each model source carries
// the variables of every storage component.
func (m *Manifest) Sources() []gridded.Source {
	sources := []gridded.Source{{
		Name:        GRACESourceName,
		Path:        m.GRACE.Path,
		Variables:   []string{m.GRACE.Variable},
		ScalePath:   m.GRACE.ScalePath,
		RegridScale: m.GRACE.RegridScale,
	}}
	for _, l := range m.LDAS {
		model := domain.Model(l.Model)
		var vars []string
		for _, c := range domain.Components() {
			vars = append(vars, c.VariableName(model))
		}
		sources = append(sources, gridded.Source{Name: l.Model, Path: l.Path, Variables: vars})
	}
	return sources
}
