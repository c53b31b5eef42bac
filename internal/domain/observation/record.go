package observation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vitals/vitals/internal/domain/vitals"
)

// ErrInvalidRecord is returned when a payload is not a JSON object.
var ErrInvalidRecord = errors.New("invalid vitals record")

// VitalsRecord is a decoded reading as received from the transport. Every
// field is optional; the mapper substitutes defaults for missing ones.
// Value is kept as raw JSON so it is copied into the Observation unchanged.
// Text fields accept any JSON scalar; a number or bool is kept as its JSON
// text and null counts as absent.
type VitalsRecord struct {
	PatientID *string         `json:"patient_id,omitempty"`
	Type      *string         `json:"type,omitempty"`
	Value     json.RawMessage `json:"value,omitempty"`
	Unit      *string         `json:"unit,omitempty"`
	Timestamp *string         `json:"timestamp,omitempty"`
}

// ParseRecord decodes a JSON payload into a VitalsRecord.
func ParseRecord(payload []byte) (*VitalsRecord, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: payload is not a JSON object", ErrInvalidRecord)
	}
	var rec VitalsRecord
	if err := json.Unmarshal(trimmed, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return &rec, nil
}

// UnmarshalJSON decodes the known fields without checking their JSON types.
func (r *VitalsRecord) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*r = VitalsRecord{
		PatientID: textField(fields["patient_id"]),
		Type:      textField(fields["type"]),
		Unit:      textField(fields["unit"]),
		Timestamp: textField(fields["timestamp"]),
	}
	if v, ok := fields["value"]; ok {
		r.Value = append(json.RawMessage(nil), v...)
	}
	return nil
}

func textField(raw json.RawMessage) *string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var s string
	if raw[0] == '"' && json.Unmarshal(raw, &s) == nil {
		return &s
	}
	s = string(raw)
	return &s
}

// RecordFromReading converts a generated reading into the record shape the
// processor receives.
func RecordFromReading(r vitals.Reading) *VitalsRecord {
	vt := string(r.Type)
	value := json.RawMessage(vitals.FormatValue(r.Type, r.Value))
	return &VitalsRecord{
		PatientID: &r.PatientID,
		Type:      &vt,
		Value:     value,
		Unit:      &r.Unit,
		Timestamp: &r.Timestamp,
	}
}

func strVal(p *string, def string) string {
	if p == nil {
		return def
	}
	return *p
}
