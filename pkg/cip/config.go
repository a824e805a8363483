package cip

import "github.com/rs/zerolog"

// RowSortMode selects the Sparsifier's row-processing order per
// spec.md §4.2 decision 8.
type RowSortMode uint8

const (
	RowSortNone RowSortMode = iota
	RowSortAscending
	RowSortDescending
)

// Timing is the presolve timing enum shared by the Sparsifier and
// SymGroup passes, per spec.md §4.8.
type Timing uint8

const (
	TimingBefore Timing = iota
	TimingDuring
	TimingAfter
)

// OrbitalFixingComputeTiming is orbitalFixing.computeTiming from
// spec.md §6.
type OrbitalFixingComputeTiming uint8

const (
	ComputeBefore OrbitalFixingComputeTiming = iota
	ComputeDuring
	ComputeFirstCall
)

// Config holds every tunable parameter named in spec.md §6. Construct
// with DefaultConfig and override with With* functional options, the
// way the teacher's SolverConfig/DefaultSolverConfig pair is built and
// overridden by callers one or two fields at a time.
type Config struct {
	Epsilon float64

	// sparsifier.*
	SparsifierEnable          bool
	SparsifierCancelLinear    bool
	SparsifierPreserveIntCoef bool
	MaxContFillIn             int
	MaxBinFillIn              int
	MaxIntFillIn              int
	MaxNonzerosEq             int
	MaxConsideredNonzeros     int
	RowSort                   RowSortMode
	MaxRetrieveFac            float64
	WaitingFac                float64
	ScaleMax                  float64

	// symmetry.*
	MaxGenerators       int
	CheckSymmetries     bool
	DoubleEquations     bool
	Compress            bool
	CompressThreshold   float64
	CompressMinVars     int
	UseColumnSparsity   bool
	DetectOrbitopes     bool
	DetectSubgroups     bool
	AddSymresacks       bool
	AddConssTiming      Timing
	AddWeakSBCs         bool
	ConssAddLP          bool
	ComputeSymmetryTime Timing

	// orbitalFixing.*
	OrbitalFixingEnable           bool
	OrbitalFixingComputeTiming    OrbitalFixingComputeTiming
	OrbitalFixingPerformInPresolve bool
	RecomputeOnRestart            bool

	// Logger is read through the Config by Build, SymGroup and
	// Orchestrator; the Sparsifier does not log. Defaults
	// to a disabled logger, the way the gnark solver defaults its
	// logger field to zerolog.Nop() until a caller supplies one.
	Logger zerolog.Logger
}

// DefaultConfig returns the documented defaults for every parameter in
// spec.md §6.
func DefaultConfig() *Config {
	return &Config{
		Epsilon: DefaultEpsilon,

		SparsifierEnable:          true,
		SparsifierCancelLinear:    true,
		SparsifierPreserveIntCoef: true,
		MaxContFillIn:             1,
		MaxBinFillIn:              1,
		MaxIntFillIn:              1,
		MaxNonzerosEq:             1000,
		MaxConsideredNonzeros:     70,
		RowSort:                   RowSortDescending,
		MaxRetrieveFac:            4.0,
		WaitingFac:                2.0,
		ScaleMax:                  1000.0,

		MaxGenerators:       1500,
		CheckSymmetries:     false,
		DoubleEquations:     false,
		Compress:            true,
		CompressThreshold:   0.5,
		CompressMinVars:     25000,
		UseColumnSparsity:   false,
		DetectOrbitopes:     true,
		DetectSubgroups:     true,
		AddSymresacks:       true,
		AddConssTiming:      TimingAfter,
		AddWeakSBCs:         true,
		ConssAddLP:          false,
		ComputeSymmetryTime: TimingBefore,

		OrbitalFixingEnable:            true,
		OrbitalFixingComputeTiming:     ComputeFirstCall,
		OrbitalFixingPerformInPresolve: false,
		RecomputeOnRestart:             true,

		Logger: zerolog.Nop(),
	}
}

// Option mutates a Config in place; see With* constructors below.
type Option func(*Config)

// WithLogger overrides the default no-op logger.
func WithLogger(l zerolog.Logger) Option { return func(c *Config) { c.Logger = l } }

// WithRowSort overrides the Sparsifier's row-processing order.
func WithRowSort(m RowSortMode) Option { return func(c *Config) { c.RowSort = m } }

// WithMaxGenerators overrides the automorphism backend's generator cap.
func WithMaxGenerators(n int) Option { return func(c *Config) { c.MaxGenerators = n } }

// WithEpsilon overrides the numeric tolerance used throughout the core.
func WithEpsilon(eps float64) Option { return func(c *Config) { c.Epsilon = eps } }

// WithOrbitalFixing toggles orbital fixing and its presolve/recompute
// behaviour in one call.
func WithOrbitalFixing(enable, performInPresolve, recomputeOnRestart bool) Option {
	return func(c *Config) {
		c.OrbitalFixingEnable = enable
		c.OrbitalFixingPerformInPresolve = performInPresolve
		c.RecomputeOnRestart = recomputeOnRestart
	}
}

// NewConfig builds a Config from DefaultConfig with the given overrides
// applied in order, mirroring csolver.NewConfig's functional-option
// pattern in the ecosystem gnark solver this package's logging style is
// grounded on.
func NewConfig(opts ...Option) *Config {
	c := DefaultConfig()
	for _, opt := range opts {
		opt(c)
	}
	return c
}
