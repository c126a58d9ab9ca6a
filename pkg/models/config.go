package models

type Config struct {
	Warehouse    Warehouse     `yaml:"warehouse"`
	Loop         Loop          `yaml:"loop"`
	Store        Store         `yaml:"store"`
	Rules        Rules         `yaml:"rules"`
	Pipeline     Pipeline      `yaml:"pipeline"`
	Logging      Logging       `yaml:"logging"`
	Metrics      Metrics       `yaml:"metrics"`
	Environments []Environment `yaml:"environments"`
}

// Warehouse holds the connection settings for the target system the loop
// observes and acts on. Account/Role/Warehouse apply to the snowflake
// driver; Host/Port apply to postgres and mysql.
type Warehouse struct {
	Driver    string `yaml:"driver"`
	Account   string `yaml:"account"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	Role      string `yaml:"role"`
	Warehouse string `yaml:"warehouse"`
	Database  string `yaml:"database"`
	Schema    string `yaml:"schema"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Timeout   string `yaml:"timeout"`
}

// Loop holds the cadences and safety settings for the control loop stages.
// Cadence strings accept "once", "every <duration>" or a 5-field cron
// expression.
type Loop struct {
	IngestEvery      string   `yaml:"ingest_every"`
	AggregateEvery   string   `yaml:"aggregate_every"`
	GenerateEvery    string   `yaml:"generate_every"`
	ApplyEvery       string   `yaml:"apply_every"`
	SweepEvery       string   `yaml:"sweep_every"`
	LookbackHours    int      `yaml:"lookback_hours"`
	DryRun           bool     `yaml:"dry_run"`
	AutoApprove      []string `yaml:"auto_approve"` // categories allowed to execute unattended
	MaxActionsPerRun int      `yaml:"max_actions_per_run"`
}

// Store selects the persistence engine for observations, snapshots and the
// audit log.
type Store struct {
	Engine    string `yaml:"engine"` // "memory" or "badger"
	Path      string `yaml:"path"`
	AuditFile string `yaml:"audit_file"` // optional JSONL mirror of the audit log
}

// Rules configures the candidate generator: optional rulepack files evaluated
// before the built-in chain, plus thresholds the built-in chain reads.
type Rules struct {
	Packs      []string   `yaml:"packs"`
	Thresholds Thresholds `yaml:"thresholds"`
}

type Thresholds struct {
	LowUtilization  float64 `yaml:"low_utilization"`
	HighUtilization float64 `yaml:"high_utilization"`
	QueueDepth      float64 `yaml:"queue_depth"`
	MinSamples      int     `yaml:"min_samples"`
}

// Pipeline configures the pipeline factory intake and sweep.
type Pipeline struct {
	Enabled          bool      `yaml:"enabled"`
	DefaultWarehouse string    `yaml:"default_warehouse"`
	RequestDir       string    `yaml:"request_dir"`
	Git              GitIntake `yaml:"git"`
}

// GitIntake points the factory at a repository of pipeline request specs so
// intake can be pull-request driven.
type GitIntake struct {
	URL       string `yaml:"url"`
	Branch    string `yaml:"branch"`
	Path      string `yaml:"path"` // directory of request files inside the repo
	LocalPath string `yaml:"local_path"`
}

type Logging struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or console
}

type Metrics struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"` // e.g. ":9151"
}

// Environment overrides the warehouse connection for a named environment.
type Environment struct {
	Name      string `yaml:"name"`
	Driver    string `yaml:"driver"`
	Account   string `yaml:"account"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	Database  string `yaml:"database"`
	Schema    string `yaml:"schema"`
	Warehouse string `yaml:"warehouse"`
	Role      string `yaml:"role"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Timeout   string `yaml:"timeout"`
}
