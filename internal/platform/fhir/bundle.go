package fhir

import (
	"encoding/json"
	"time"
)

type Bundle struct {
	ResourceType string        `json:"resourceType"`
	ID           string        `json:"id,omitempty"`
	Type         string        `json:"type"`
	Total        *int          `json:"total,omitempty"`
	Link         []BundleLink  `json:"link,omitempty"`
	Entry        []BundleEntry `json:"entry,omitempty"`
	Timestamp    *time.Time    `json:"timestamp,omitempty"`
}

type BundleLink struct {
	Relation string `json:"relation"`
	URL      string `json:"url"`
}

type BundleEntry struct {
	FullURL  string          `json:"fullUrl,omitempty"`
	Resource json.RawMessage `json:"resource,omitempty"`
	Search   *BundleSearch   `json:"search,omitempty"`
}

type BundleSearch struct {
	Mode string `json:"mode,omitempty"`
}

// StoredResource is a resource document as read back from a store.
type StoredResource struct {
	ID       string
	Resource json.RawMessage
}

// NewSearchBundle builds a searchset Bundle. baseURL is the type endpoint,
// e.g. "/fhir/Observation"; entry fullUrls are baseURL/{id}.
func NewSearchBundle(resources []StoredResource, total int, baseURL string, links []BundleLink) *Bundle {
	now := time.Now().UTC()
	entries := make([]BundleEntry, len(resources))
	for i, r := range resources {
		entries[i] = BundleEntry{
			FullURL:  baseURL + "/" + r.ID,
			Resource: r.Resource,
			Search:   &BundleSearch{Mode: "match"},
		}
	}
	if len(links) == 0 {
		links = []BundleLink{{Relation: "self", URL: baseURL}}
	}
	return &Bundle{
		ResourceType: "Bundle",
		Type:         "searchset",
		Total:        &total,
		Timestamp:    &now,
		Link:         links,
		Entry:        entries,
	}
}
