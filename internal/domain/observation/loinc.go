package observation

import (
	"github.com/vitals/vitals/internal/domain/vitals"
	"github.com/vitals/vitals/internal/platform/fhir"
	"github.com/vitals/vitals/pkg/fhirmodels"
)

// UnknownCode is returned for any vital type without a LOINC entry.
var UnknownCode = fhir.Coding{
	System:  fhirmodels.SystemLOINC,
	Code:    "unknown",
	Display: "Unknown",
}

var loincCodes = map[string]fhir.Coding{
	string(vitals.HeartRate): {
		System:  fhirmodels.SystemLOINC,
		Code:    "8867-4",
		Display: "Heart rate",
	},
	string(vitals.SpO2): {
		System:  fhirmodels.SystemLOINC,
		Code:    "2708-6",
		Display: "Oxygen saturation",
	},
	string(vitals.BloodPressureSystolic): {
		System:  fhirmodels.SystemLOINC,
		Code:    "8480-6",
		Display: "Systolic blood pressure",
	},
	string(vitals.BloodPressureDiastolic): {
		System:  fhirmodels.SystemLOINC,
		Code:    "8462-4",
		Display: "Diastolic blood pressure",
	},
	string(vitals.Temperature): {
		System:  fhirmodels.SystemLOINC,
		Code:    "8310-5",
		Display: "Body temperature",
	},
	string(vitals.RespiratoryRate): {
		System:  fhirmodels.SystemLOINC,
		Code:    "9279-1",
		Display: "Respiratory rate",
	},
}

// LookupCode returns the LOINC coding for a vital type, or UnknownCode.
func LookupCode(vitalType string) fhir.Coding {
	if c, ok := loincCodes[vitalType]; ok {
		return c
	}
	return UnknownCode
}
