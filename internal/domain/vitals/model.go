package vitals

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// VitalType identifies one of the supported vital-sign measurements.
type VitalType string

const (
	HeartRate              VitalType = "heart_rate"
	SpO2                   VitalType = "spo2"
	BloodPressureSystolic  VitalType = "blood_pressure_systolic"
	BloodPressureDiastolic VitalType = "blood_pressure_diastolic"
	Temperature            VitalType = "temperature"
	RespiratoryRate        VitalType = "respiratory_rate"
)

// ErrUnsupportedVitalType is returned when a reading is requested for a type
// that has no configured range.
var ErrUnsupportedVitalType = errors.New("unsupported vital type")

// allTypes is the declared enumeration order. Batches follow it.
var allTypes = []VitalType{
	HeartRate,
	SpO2,
	BloodPressureSystolic,
	BloodPressureDiastolic,
	Temperature,
	RespiratoryRate,
}

// Types returns the supported vital types in declaration order.
func Types() []VitalType {
	out := make([]VitalType, len(allTypes))
	copy(out, allTypes)
	return out
}

// Valid reports whether t is one of the supported vital types.
func (t VitalType) Valid() bool {
	_, ok := ranges[t]
	return ok
}

// Reading is a single synthetic vital-sign measurement as it travels over the
// message transport.
type Reading struct {
	PatientID string    `json:"patient_id"`
	Type      VitalType `json:"type"`
	Value     float64   `json:"value"`
	Unit      string    `json:"unit"`
	Timestamp string    `json:"timestamp"`
}

// MarshalJSON writes temperatures with one decimal place so 37 goes out as
// 37.0; the other types are whole numbers.
func (r Reading) MarshalJSON() ([]byte, error) {
	type wire struct {
		PatientID string          `json:"patient_id"`
		Type      VitalType       `json:"type"`
		Value     json.RawMessage `json:"value"`
		Unit      string          `json:"unit"`
		Timestamp string          `json:"timestamp"`
	}
	return json.Marshal(wire{
		PatientID: r.PatientID,
		Type:      r.Type,
		Value:     json.RawMessage(FormatValue(r.Type, r.Value)),
		Unit:      r.Unit,
		Timestamp: r.Timestamp,
	})
}

// FormatValue renders v as a JSON number for type t.
func FormatValue(t VitalType, v float64) string {
	prec := -1
	if t == Temperature {
		prec = 1
	}
	return strconv.FormatFloat(v, 'f', prec, 64)
}

func (r Reading) String() string {
	return fmt.Sprintf("[%s] %s: %v %s", r.PatientID, r.Type, r.Value, r.Unit)
}

// Band is an inclusive numeric interval.
type Band struct {
	Min float64
	Max float64
}

// Contains reports whether v lies inside the band.
func (b Band) Contains(v float64) bool {
	return v >= b.Min && v <= b.Max
}

// VitalRange holds the normal range, unit and abnormal bands for one type.
// Precision is the number of decimal places kept on generated values.
type VitalRange struct {
	Normal       Band
	Unit         string
	AbnormalLow  *Band
	AbnormalHigh *Band
	Precision    int
}

// IsNormal reports whether v lies inside the normal range.
func (r VitalRange) IsNormal(v float64) bool {
	return r.Normal.Contains(v)
}

// IsAbnormal reports whether v lies inside one of the abnormal bands.
func (r VitalRange) IsAbnormal(v float64) bool {
	if r.AbnormalLow != nil && r.AbnormalLow.Contains(v) {
		return true
	}
	return r.AbnormalHigh != nil && r.AbnormalHigh.Contains(v)
}

var ranges = map[VitalType]VitalRange{
	HeartRate: {
		Normal:       Band{Min: 60, Max: 100},
		Unit:         "bpm",
		AbnormalLow:  &Band{Min: 40, Max: 59},
		AbnormalHigh: &Band{Min: 101, Max: 120},
	},
	SpO2: {
		Normal:      Band{Min: 94, Max: 100},
		Unit:        "%",
		AbnormalLow: &Band{Min: 88, Max: 93},
	},
	BloodPressureSystolic: {
		Normal:       Band{Min: 100, Max: 140},
		Unit:         "mmHg",
		AbnormalLow:  &Band{Min: 80, Max: 99},
		AbnormalHigh: &Band{Min: 141, Max: 180},
	},
	BloodPressureDiastolic: {
		Normal:       Band{Min: 60, Max: 90},
		Unit:         "mmHg",
		AbnormalLow:  &Band{Min: 40, Max: 59},
		AbnormalHigh: &Band{Min: 91, Max: 120},
	},
	Temperature: {
		Normal:       Band{Min: 36.1, Max: 37.5},
		Unit:         "Cel",
		AbnormalHigh: &Band{Min: 37.6, Max: 39.0},
		Precision:    1,
	},
	RespiratoryRate: {
		Normal:       Band{Min: 12, Max: 20},
		Unit:         "/min",
		AbnormalLow:  &Band{Min: 8, Max: 11},
		AbnormalHigh: &Band{Min: 21, Max: 30},
	},
}

// RangeFor returns the configured range for t.
func RangeFor(t VitalType) (VitalRange, error) {
	r, ok := ranges[t]
	if !ok {
		return VitalRange{}, fmt.Errorf("%w: %q", ErrUnsupportedVitalType, t)
	}
	return r, nil
}

// Roster is the fixed set of simulated patients.
var roster = []string{"patient-001", "patient-002", "patient-003", "patient-004", "patient-005"}

// Roster returns the simulated patient identifiers.
func Roster() []string {
	out := make([]string, len(roster))
	copy(out, roster)
	return out
}
