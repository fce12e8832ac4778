package irrigation

// Command is the discrete irrigation instruction produced by the evaluator.
type Command string

const (
	// Weather rule.
	CommandPermitIrrigation Command = "PERMIT_IRRIGATION"
	CommandSuspendLight     Command = "SUSPEND_LIGHT"
	CommandForceStop        Command = "FORCE_STOP"

	// Soil rule.
	CommandActivatePump Command = "ACTIVATE_PUMP"
	CommandIdle         Command = "IDLE"

	// CommandUnknown is reported when the input was incomplete or malformed.
	// It is never an instruction to irrigate.
	CommandUnknown Command = "UNKNOWN"
)

// Irrigates reports whether the command lets water flow.
func (c Command) Irrigates() bool {
	switch c {
	case CommandPermitIrrigation, CommandSuspendLight, CommandActivatePump:
		return true
	default:
		return false
	}
}

// Rule names the decision rule that produced a Decision.
type Rule string

const (
	RuleWeather Rule = "weather"
	RuleSoil    Rule = "soil"
)

// Decision is the evaluator output for a single observation.
type Decision struct {
	Rule    Rule    `json:"rule"`
	Command Command `json:"command"`
	Reason  string  `json:"reason"`
}

// RainInput is the forecast summary the weather rule reads. Pointer fields
// distinguish a missing value from a zero value.
type RainInput struct {
	WillRain    *bool    `json:"will_rain" validate:"required"`
	IntensityMM *float64 `json:"intensity_mm" validate:"required,gte=0"`
}

// SoilInput is the raw soil measurement the soil rule reads.
type SoilInput struct {
	Nitrogen    *bool    `json:"nitrogen" validate:"required"`
	Phosphorus  *bool    `json:"phosphorus" validate:"required"`
	Potassium   *bool    `json:"potassium" validate:"required"`
	PH          *float64 `json:"ph" validate:"required,gte=0,lte=14"`
	MoisturePct *float64 `json:"moisture_pct" validate:"required,gte=0,lte=100"`
}

// Rain builds a complete RainInput.
func Rain(willRain bool, intensityMM float64) RainInput {
	return RainInput{WillRain: &willRain, IntensityMM: &intensityMM}
}

// Soil builds a complete SoilInput.
func Soil(n, p, k bool, ph, moisturePct float64) SoilInput {
	return SoilInput{
		Nitrogen:    &n,
		Phosphorus:  &p,
		Potassium:   &k,
		PH:          &ph,
		MoisturePct: &moisturePct,
	}
}
