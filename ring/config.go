package ring

// Config holds the construction parameters enumerated in spec.md §6.
type Config struct {
	// InitialSize is the starting ring capacity.
	InitialSize int64
	// AutoResize enables the Capacity Controller.
	AutoResize bool
	// DesiredEjectMins is the Controller's target mean residency.
	DesiredEjectMins float64
	// AutoMinSize / AutoMaxSize bound the Controller's chosen capacity.
	AutoMinSize int64
	AutoMaxSize int64
	// MonitorPeriodMins is the Controller's window length.
	MonitorPeriodMins float64
	// TriggerAdjustPercent is the deadband around the target residency.
	TriggerAdjustPercent float64
	// MaxAdjustPercentUp / MaxAdjustPercentDown are the asymmetric slew
	// caps applied to a single resize decision.
	MaxAdjustPercentUp   float64
	MaxAdjustPercentDown float64
	// ParamList is the schema, in declaration order.
	ParamList []ParamSpec
	// DrainParallelItems is the batch size used when a ParallelTransport
	// is configured.
	DrainParallelItems int
}

// DefaultConfig returns the spec.md §6 defaults. ParamList must still be
// supplied by the caller.
func DefaultConfig() Config {
	return Config{
		InitialSize:          1_000_000,
		AutoResize:           false,
		DesiredEjectMins:     15,
		AutoMinSize:          10_000,
		AutoMaxSize:          10_000_000,
		MonitorPeriodMins:    10,
		TriggerAdjustPercent: 20,
		MaxAdjustPercentUp:   25,
		MaxAdjustPercentDown: 10,
		DrainParallelItems:   100,
	}
}

func (c Config) validate() error {
	if c.InitialSize <= 0 {
		return errConfig("initialSize must be positive")
	}
	if len(c.ParamList) == 0 {
		return errConfig("paramList is required")
	}
	if c.DrainParallelItems <= 0 {
		return errConfig("drainParallelItems must be positive")
	}
	return nil
}

type configError string

func (e configError) Error() string { return "ring: " + string(e) }

func errConfig(msg string) error { return configError(msg) }
