// YAML config loader with CUE validation integration
package config

import (
	"fmt"
	"os"

	"cuelang.org/go/cue/cuecontext"
	cueyaml "cuelang.org/go/encoding/yaml"
	"gopkg.in/yaml.v3"
)

// Zone defines one circular geofence seeded into the store at startup.
type Zone struct {
	Name      string  `yaml:"name"`
	CenterLat float64 `yaml:"center_lat"`
	CenterLon float64 `yaml:"center_lon"`
	RadiusM   float64 `yaml:"radius_m"`
}

// Fleet describes how the durable agent rows are provisioned.
type Fleet struct {
	NamePrefix string   `yaml:"name_prefix"`
	Size       int      `yaml:"size"`
	Bands      []string `yaml:"bands"`
}

// Population bounds the number of concurrently active agents.
type Population struct {
	MinActive        int     `yaml:"min_active"`
	MaxActive        int     `yaml:"max_active"`
	DeactivationProb float64 `yaml:"deactivation_prob"`
}

// Motion holds the kinematic tuning for the integrator.
type Motion struct {
	StepM           float64 `yaml:"step_m"`
	ArrivalEpsilonM float64 `yaml:"arrival_epsilon_m"`
	RouteExtentM    float64 `yaml:"route_extent_m"`
	SpeedMinMPS     float64 `yaml:"speed_min_mps"`
	SpeedMaxMPS     float64 `yaml:"speed_max_mps"`
	SpeedJitterMPS  float64 `yaml:"speed_jitter_mps"`
	AltMinM         float64 `yaml:"alt_min_m"`
	AltMaxM         float64 `yaml:"alt_max_m"`
	AltJitterM      float64 `yaml:"alt_jitter_m"`
}

// Config is the root configuration for the fleet simulator.
type Config struct {
	Zones        []Zone     `yaml:"zones"`
	Fleet        Fleet      `yaml:"fleet"`
	Population   Population `yaml:"population"`
	Motion       Motion     `yaml:"motion"`
	TickSeconds  int        `yaml:"tick_seconds"`
	FlushSeconds int        `yaml:"flush_seconds"`
	ListenAddr   string     `yaml:"listen_addr"`
	DBPath       string     `yaml:"db_path"`
}

// Load loads YAML config and validates it against a CUE schema.
func Load(configPath, cueSchemaPath string) (*Config, error) {
	if err := ValidateWithCue(configPath, cueSchemaPath); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.TickSeconds <= 0 {
		c.TickSeconds = 1
	}
	if c.FlushSeconds <= 0 {
		c.FlushSeconds = 10
	}
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.DBPath == "" {
		c.DBPath = "fleetsim.db"
	}
	if c.Motion.StepM <= 0 {
		c.Motion.StepM = 40
	}
	if c.Motion.ArrivalEpsilonM <= 0 {
		c.Motion.ArrivalEpsilonM = 25
	}
	if c.Motion.RouteExtentM <= 0 {
		c.Motion.RouteExtentM = 1500
	}
	if c.Motion.SpeedMaxMPS <= 0 {
		c.Motion.SpeedMinMPS = 10
		c.Motion.SpeedMaxMPS = 45
	}
	if c.Motion.SpeedJitterMPS <= 0 {
		c.Motion.SpeedJitterMPS = 2
	}
	if c.Motion.AltMaxM <= 0 {
		c.Motion.AltMinM = 50
		c.Motion.AltMaxM = 300
	}
	if c.Motion.AltJitterM <= 0 {
		c.Motion.AltJitterM = 3
	}
}

// Validate applies semantic checks that CUE's shape check cannot express.
func (c *Config) Validate() error {
	if len(c.Zones) == 0 {
		return fmt.Errorf("config: at least one zone is required")
	}
	if c.Fleet.Size <= 0 {
		return fmt.Errorf("config: fleet size must be positive")
	}
	if c.Population.MinActive > c.Population.MaxActive {
		return fmt.Errorf("config: min_active %d exceeds max_active %d",
			c.Population.MinActive, c.Population.MaxActive)
	}
	if c.Population.DeactivationProb < 0 || c.Population.DeactivationProb > 1 {
		return fmt.Errorf("config: deactivation_prob must be in [0,1]")
	}
	for _, z := range c.Zones {
		if z.RadiusM <= 0 {
			return fmt.Errorf("config: zone %q has non-positive radius", z.Name)
		}
	}
	return nil
}

// ValidateWithCue validates a YAML configuration file using a CUE schema file.
func ValidateWithCue(configFile, cueFile string) error {
	ctx := cuecontext.New()

	// Read YAML config
	yamlBytes, err := os.ReadFile(configFile)
	if err != nil {
		return fmt.Errorf("cannot read YAML config: %w", err)
	}
	configFileAST, err := cueyaml.Extract(configFile, yamlBytes)
	if err != nil {
		return fmt.Errorf("cannot parse YAML config: %w", err)
	}
	configVal := ctx.BuildFile(configFileAST)
	if configVal.Err() != nil {
		return fmt.Errorf("cannot build YAML config: %w", configVal.Err())
	}

	// Read CUE schema
	schemaBytes, err := os.ReadFile(cueFile)
	if err != nil {
		return fmt.Errorf("cannot read CUE schema: %w", err)
	}
	schemaVal := ctx.CompileBytes(schemaBytes)
	if schemaVal.Err() != nil {
		return fmt.Errorf("cannot compile CUE schema: %w", schemaVal.Err())
	}

	// Merge values with schema
	final := configVal.Unify(schemaVal)
	if final.Err() != nil {
		return fmt.Errorf("schema unify failed: %w", final.Err())
	}

	// Validate final structure
	if err := final.Validate(); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}
