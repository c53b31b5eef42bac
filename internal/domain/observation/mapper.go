package observation

import (
	"encoding/json"

	"github.com/vitals/vitals/internal/platform/fhir"
	"github.com/vitals/vitals/pkg/fhirmodels"
)

const (
	unknownVitalText = "Unknown Vital"
	unknownPatientID = "unknown"
)

// Observation is the FHIR R4 Observation produced for one vitals record.
// EffectiveDateTime is serialized as null when the record had no timestamp.
type Observation struct {
	ResourceType      string                 `json:"resourceType"`
	ID                string                 `json:"id,omitempty"`
	Meta              *fhir.Meta             `json:"meta,omitempty"`
	Status            string                 `json:"status"`
	Category          []fhir.CodeableConcept `json:"category"`
	Code              fhir.CodeableConcept   `json:"code"`
	Subject           fhir.Reference         `json:"subject"`
	EffectiveDateTime *string                `json:"effectiveDateTime"`
	ValueQuantity     Quantity               `json:"valueQuantity"`
}

// Quantity is a FHIR Quantity whose value is carried through untouched.
type Quantity struct {
	Value  json.RawMessage `json:"value"`
	Unit   string          `json:"unit"`
	System string          `json:"system"`
}

// ToObservation maps a vitals record to a FHIR Observation. It never fails:
// missing fields are replaced by defaults.
func ToObservation(rec *VitalsRecord) *Observation {
	if rec == nil {
		rec = &VitalsRecord{}
	}

	coding := UnknownCode
	if rec.Type != nil {
		coding = LookupCode(*rec.Type)
	}

	obs := &Observation{
		ResourceType: fhirmodels.ResourceObservation,
		Status:       fhirmodels.ObsStatusFinal,
		Category: []fhir.CodeableConcept{{
			Coding: []fhir.Coding{{
				System:  fhirmodels.SystemObservationCategory,
				Code:    fhirmodels.ObsCategoryVitalSigns,
				Display: fhirmodels.ObsCategoryVitalSignsDisplay,
			}},
		}},
		Code: fhir.CodeableConcept{
			Coding: []fhir.Coding{coding},
			Text:   strVal(rec.Type, unknownVitalText),
		},
		Subject: fhir.Reference{
			Reference: fhir.FormatReference(fhirmodels.ResourcePatient, strVal(rec.PatientID, unknownPatientID)),
		},
		ValueQuantity: Quantity{
			Unit:   strVal(rec.Unit, ""),
			System: fhirmodels.SystemUCUM,
		},
	}
	if rec.Timestamp != nil {
		ts := *rec.Timestamp
		obs.EffectiveDateTime = &ts
	}
	if len(rec.Value) > 0 {
		obs.ValueQuantity.Value = append(json.RawMessage(nil), rec.Value...)
	}
	return obs
}

// PatientReference returns the subject reference of the observation.
func (o *Observation) PatientReference() string {
	return o.Subject.Reference
}
