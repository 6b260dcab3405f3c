// Package numerator defines reference number allocation for movement records.
package numerator

// Strategy defines how sequence values are reserved.
type Strategy int

const (
	// StrategyStrict reserves one value per call inside the caller's transaction.
	// A rolled back create gives its value back, so numbers have no gaps.
	StrategyStrict Strategy = iota

	// StrategyCached reserves ranges in memory. Restarts leave gaps.
	StrategyCached
)

// Options configures a single allocation.
type Options struct {
	Strategy Strategy
	// RangeSize is the cached range length. Default is 50.
	RangeSize int64
}

// DefaultOptions returns the strict strategy.
func DefaultOptions() *Options {
	return &Options{Strategy: StrategyStrict}
}

// Config describes a reference number format: PREFIX-YEAR-00001.
type Config struct {
	Prefix      string
	IncludeYear bool
	PadWidth    int

	// ResetPeriod: "year", "month" or "never"
	ResetPeriod string
}

// DefaultConfig numbers per year with five digits.
func DefaultConfig(prefix string) Config {
	return Config{
		Prefix:      prefix,
		IncludeYear: true,
		PadWidth:    5,
		ResetPeriod: "year",
	}
}
