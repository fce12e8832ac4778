package irrigation

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	// HeavyRainThresholdMM separates light from heavy forecast rain.
	// Exactly 5.0 mm is still light rain.
	HeavyRainThresholdMM = 5.0

	// Tomato soil window.
	PHMin              = 6.0
	PHMax              = 6.8
	MoistureCeilingPct = 60.0
)

// InsufficientDataError is returned when an input is incomplete or malformed.
type InsufficientDataError struct {
	Rule   Rule
	Fields []string
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for %s rule: %s", e.Rule, strings.Join(e.Fields, ", "))
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// EvaluateRain maps a rain forecast onto a weather command.
func EvaluateRain(in RainInput) (Decision, error) {
	if err := check(RuleWeather, in, in.IntensityMM); err != nil {
		return Unknown(RuleWeather), err
	}

	d := Decision{Rule: RuleWeather}
	switch {
	case !*in.WillRain:
		d.Command = CommandPermitIrrigation
		d.Reason = "no rain forecast - normal irrigation allowed"
	case *in.IntensityMM > HeavyRainThresholdMM:
		d.Command = CommandForceStop
		d.Reason = fmt.Sprintf("heavy rain forecast (%.1f mm) - stop irrigation immediately", *in.IntensityMM)
	default:
		d.Command = CommandSuspendLight
		d.Reason = fmt.Sprintf("light rain forecast (%.1f mm) - reduce irrigation", *in.IntensityMM)
	}
	return d, nil
}

// EvaluateSoil maps a soil reading onto a pump command. The pump runs only
// when every nutrient is present, pH is inside [PHMin, PHMax] and moisture
// is below MoistureCeilingPct.
func EvaluateSoil(in SoilInput) (Decision, error) {
	if err := check(RuleSoil, in, in.PH, in.MoisturePct); err != nil {
		return Unknown(RuleSoil), err
	}

	var missing []string
	if !*in.Nitrogen {
		missing = append(missing, "N")
	}
	if !*in.Phosphorus {
		missing = append(missing, "P")
	}
	if !*in.Potassium {
		missing = append(missing, "K")
	}

	ph, moisture := *in.PH, *in.MoisturePct
	d := Decision{Rule: RuleSoil, Command: CommandIdle}
	switch {
	case len(missing) > 0:
		d.Reason = "nutrients missing: " + strings.Join(missing, ",")
	case ph < PHMin || ph > PHMax:
		d.Reason = fmt.Sprintf("pH %.2f outside %.1f-%.1f", ph, PHMin, PHMax)
	case moisture >= MoistureCeilingPct:
		d.Reason = fmt.Sprintf("soil moisture %.1f%% at or above %.0f%%", moisture, MoistureCeilingPct)
	default:
		d.Command = CommandActivatePump
		d.Reason = fmt.Sprintf("NPK present, pH %.2f, moisture %.1f%% - pump on", ph, moisture)
	}
	return d, nil
}

func check(rule Rule, in any, floats ...*float64) error {
	var fields []string
	if err := validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return &InsufficientDataError{Rule: rule, Fields: []string{err.Error()}}
		}
		for _, fe := range verrs {
			fields = append(fields, fe.Field())
		}
	}
	// gte/lte already reject NaN; infinities need an explicit look.
	for _, f := range floats {
		if f != nil && math.IsInf(*f, 0) && len(fields) == 0 {
			fields = append(fields, "infinite value")
		}
	}
	if len(fields) > 0 {
		return &InsufficientDataError{Rule: rule, Fields: fields}
	}
	return nil
}

// Unknown is the decision reported when a rule cannot be evaluated.
func Unknown(rule Rule) Decision {
	return Decision{Rule: rule, Command: CommandUnknown, Reason: "insufficient data - automatic irrigation suspended"}
}
