package fhirmodels

// Common FHIR value set constants used across the application.

// ObservationCategory codes.
const (
	ObsCategoryVitalSigns    = "vital-signs"
	ObsCategoryLaboratory    = "laboratory"
	ObsCategorySocialHistory = "social-history"
	ObsCategorySurvey        = "survey"
	ObsCategoryExam          = "exam"
	ObsCategoryActivity      = "activity"
)

// ObsCategoryVitalSignsDisplay is the display text paired with ObsCategoryVitalSigns.
const ObsCategoryVitalSignsDisplay = "Vital Signs"

// ObservationStatus values per FHIR R4.
const (
	ObsStatusRegistered     = "registered"
	ObsStatusPreliminary    = "preliminary"
	ObsStatusFinal          = "final"
	ObsStatusAmended        = "amended"
	ObsStatusCancelled      = "cancelled"
	ObsStatusEnteredInError = "entered-in-error"
	ObsStatusUnknown        = "unknown"
)

// Code system URIs.
const (
	SystemObservationCategory = "http://terminology.hl7.org/CodeSystem/observation-category"
	SystemLOINC               = "http://loinc.org"
	SystemUCUM                = "http://unitsofmeasure.org"
)

// Resource type names.
const (
	ResourceObservation = "Observation"
	ResourcePatient     = "Patient"
)

// ContentTypeFHIRJSON is the media type for FHIR JSON payloads.
const ContentTypeFHIRJSON = "application/fhir+json"
