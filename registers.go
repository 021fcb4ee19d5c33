package evacalor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fredericvl/evacalor-golang/internal/formula"
)

// Register keys used by the library. The platform addresses device state
// as registers; each key maps to an offset in the buffer readings plus the
// conversion metadata needed to decode or encode its value.
const (
	regAirTemp       = "temp_air_get"
	regTargetTemp    = "temp_air_set"
	regStatus        = "status_get"
	regManagedPower  = "status_managed_get"
	regManagedEnable = "status_managed_on_enable"
	regAlarms        = "alarms_get"
	regSmokeTemp     = "temp_gas_flue_get"
	regRealPower     = "real_power_get"
	regPowerLevel    = "power_set"
)

// register holds the decoded conversion metadata for one register key.
type register struct {
	offset         int
	formula        string
	formulaInverse string
	formatString   string
	setMin         float64
	setMax         float64
	mask           int
	encodings      []encoding
}

// encoding is one enumerated value of a register, with its description
// normalized to lower case. Only ENG descriptions are kept.
type encoding struct {
	description string
	value       int
}

// registerMap indexes a device's registers by reg_key.
type registerMap map[string]register

func newRegisterMap(entry registersMapEntry) registerMap {
	m := make(registerMap, len(entry.Registers))
	for _, raw := range entry.Registers {
		reg := register{
			offset:         raw.Offset,
			formula:        raw.Formula,
			formulaInverse: raw.FormulaInverse,
			formatString:   raw.FormatString,
			setMin:         raw.SetMin,
			setMax:         raw.SetMax,
			mask:           raw.Mask,
		}
		for _, enc := range raw.EncVal {
			if enc.Lang != "ENG" {
				continue
			}
			reg.encodings = append(reg.encodings, encoding{
				description: strings.ToLower(strings.TrimSpace(enc.Description)),
				value:       enc.Value,
			})
		}
		m[raw.RegKey] = reg
	}
	return m
}

// readings holds the raw values of one buffer reading, keyed by register
// offset.
type readings map[int]float64

// decodeReadings zips the Items/Values arrays of a completed job answer
// into raw readings. Individual entries that are not numeric are skipped,
// leaving their register unknown; missing arrays fail the whole decode.
func decodeReadings(data map[string]any) (readings, error) {
	items, ok := data["Items"].([]any)
	if !ok {
		return nil, fmt.Errorf("job answer has no Items array")
	}
	values, ok := data["Values"].([]any)
	if !ok {
		return nil, fmt.Errorf("job answer has no Values array")
	}

	n := len(items)
	if len(values) < n {
		n = len(values)
	}
	r := make(readings, n)
	for i := 0; i < n; i++ {
		offset, ok := parseInt(items[i])
		if !ok {
			continue
		}
		value, ok := parseFloat(values[i])
		if !ok {
			continue
		}
		r[offset] = value
	}
	return r, nil
}

// value decodes the engineering value of the register behind key from raw
// readings. A missing register, a missing offset, or a formula that fails
// to evaluate all report ok=false; the caller treats that as unknown.
func (m registerMap) value(key string, r readings) (float64, bool) {
	reg, ok := m[key]
	if !ok {
		return 0, false
	}
	raw, ok := r[reg.offset]
	if !ok {
		return 0, false
	}
	v, err := formula.Eval(reg.formula, raw)
	if err != nil {
		return 0, false
	}
	return formula.Round(v, reg.formatString), true
}

// encode converts an engineering value into the raw integer the platform
// expects for this register, applying the inverse formula and truncating
// at the register's advertised precision.
func (reg register) encode(value float64) (int, error) {
	v, err := formula.Eval(reg.formulaInverse, value)
	if err != nil {
		return 0, err
	}
	return int(formula.Round(v, reg.formatString)), nil
}

// lookupValue resolves an enumerated description (case-insensitive) to its
// raw register value.
func (reg register) lookupValue(description string) (int, bool) {
	description = strings.ToLower(strings.TrimSpace(description))
	for _, enc := range reg.encodings {
		if enc.description == description {
			return enc.value, true
		}
	}
	return 0, false
}

// lookupDescription resolves a raw register value to its enumerated
// description.
func (reg register) lookupDescription(value int) (string, bool) {
	for _, enc := range reg.encodings {
		if enc.value == value {
			return enc.description, true
		}
	}
	return "", false
}

// descriptions lists the register's enumerated descriptions in advertised
// order.
func (reg register) descriptions() []string {
	if len(reg.encodings) == 0 {
		return nil
	}
	out := make([]string, 0, len(reg.encodings))
	for _, enc := range reg.encodings {
		out = append(out, enc.description)
	}
	return out
}

func parseInt(value any) (int, bool) {
	switch typed := value.(type) {
	case float64:
		return int(typed), true
	case int:
		return typed, true
	case int64:
		return int(typed), true
	case string:
		if parsed, err := strconv.Atoi(strings.TrimSpace(typed)); err == nil {
			return parsed, true
		}
	}
	return 0, false
}

func parseFloat(value any) (float64, bool) {
	switch typed := value.(type) {
	case float64:
		return typed, true
	case float32:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case int:
		return float64(typed), true
	case string:
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(typed), 64); err == nil {
			return parsed, true
		}
	}
	return 0, false
}
