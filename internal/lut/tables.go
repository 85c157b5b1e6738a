package lut

// Params describes the domains and resolutions of the four tables.
type Params struct {
	SigmoidMin        float64 `yaml:"sigmoid_min"`
	SigmoidMax        float64 `yaml:"sigmoid_max"`
	SigmoidSteps      int     `yaml:"sigmoid_steps"`
	LogRatioMin       float64 `yaml:"log_ratio_min"`
	LogRatioMax       float64 `yaml:"log_ratio_max"`
	LogRatioSteps     int     `yaml:"log_ratio_steps"`
	DiscountRate      float64 `yaml:"discount_rate"`
	DiscountHorizon   int     `yaml:"discount_horizon"`
	KernelDecay       float64 `yaml:"kernel_decay"`
	KernelMaxDistance int     `yaml:"kernel_max_distance"`
}

// DefaultParams returns the table parameters used throughout the engine.
func DefaultParams() Params {
	return Params{
		SigmoidMin:        -4,
		SigmoidMax:        4,
		SigmoidSteps:      256,
		LogRatioMin:       0.25,
		LogRatioMax:       4,
		LogRatioSteps:     256,
		DiscountRate:      0.95,
		DiscountHorizon:   16,
		KernelDecay:       0.2,
		KernelMaxDistance: 20,
	}
}

// Tables bundles the lookup tables shared by every country and tick.
type Tables struct {
	Sigmoid        *Sigmoid
	LogRatio       *LogRatio
	Discount       *Discount
	DistanceKernel *DistanceKernel
}

// NewTables builds all four tables from p.
func NewTables(p Params) *Tables {
	return &Tables{
		Sigmoid:        NewSigmoid(p.SigmoidMin, p.SigmoidMax, p.SigmoidSteps),
		LogRatio:       NewLogRatio(p.LogRatioMin, p.LogRatioMax, p.LogRatioSteps),
		Discount:       NewDiscount(p.DiscountRate, p.DiscountHorizon),
		DistanceKernel: NewDistanceKernel(p.KernelMaxDistance, p.KernelDecay),
	}
}

// DefaultTables builds the tables with DefaultParams.
func DefaultTables() *Tables {
	return NewTables(DefaultParams())
}
