package engine

// Config carries the tunable allocation policy. It is an explicit value
// passed into every call; the engine keeps no global state.
type Config struct {
	// VelocityHorizonMonths caps per-SKU stock to this many months of
	// velocity-adjusted sales. Policy range is 2-3 months.
	VelocityHorizonMonths float64

	// ChurnCapWeeks caps churn weeks when positive; zero disables the cap.
	ChurnCapWeeks float64

	// DefaultLeadDays is used when no churn override supplies a supplier
	// lead time.
	DefaultLeadDays int

	// MaxCasesPerOption bounds the discrete case counts enumerated per SKU.
	MaxCasesPerOption int

	// ExhaustiveLimit is the candidate count up to which the optimizer
	// enumerates every subset. Above it the greedy + swap path runs.
	ExhaustiveLimit int

	// SeedBundles is how many top single-SKU bundles seed multi-SKU
	// combination per supplier.
	SeedBundles int

	// MaxBundlesPerSupplier bounds how many bundles one supplier feeds into
	// the optimizer.
	MaxBundlesPerSupplier int
}

// DefaultConfig returns the production policy.
func DefaultConfig() Config {
	return Config{
		VelocityHorizonMonths: 2,
		ChurnCapWeeks:         15,
		DefaultLeadDays:       0,
		MaxCasesPerOption:     20,
		ExhaustiveLimit:       20,
		SeedBundles:           5,
		MaxBundlesPerSupplier: 8,
	}
}

// normalized fills zero fields with defaults so a partially built Config
// behaves sanely.
func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.VelocityHorizonMonths <= 0 {
		c.VelocityHorizonMonths = d.VelocityHorizonMonths
	}
	if c.MaxCasesPerOption <= 0 {
		c.MaxCasesPerOption = d.MaxCasesPerOption
	}
	if c.ExhaustiveLimit <= 0 {
		c.ExhaustiveLimit = d.ExhaustiveLimit
	}
	if c.SeedBundles <= 0 {
		c.SeedBundles = d.SeedBundles
	}
	if c.MaxBundlesPerSupplier <= 0 {
		c.MaxBundlesPerSupplier = d.MaxBundlesPerSupplier
	}
	return c
}
