package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vitals/vitals/internal/platform/fhir"
)

var ErrNotFound = errors.New("resource not found")

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// ObservationStore keeps Observation documents as JSONB in Postgres. It is
// the local stand-in for a managed FHIR store.
type ObservationStore struct {
	conn queryable
	now  func() time.Time
}

func NewObservationStore(pool *pgxpool.Pool) *ObservationStore {
	return &ObservationStore{conn: pool, now: time.Now}
}

// indexedFields are the columns pulled out of the document for search.
type indexedFields struct {
	ResourceType string `json:"resourceType"`
	Subject      struct {
		Reference string `json:"reference"`
	} `json:"subject"`
	Code struct {
		Coding []fhir.Coding `json:"coding"`
	} `json:"code"`
	EffectiveDateTime *string `json:"effectiveDateTime"`
}

// prepareDocument assigns the server id and meta to a resource and returns
// the stored document with its index columns.
func prepareDocument(resourceType string, resource interface{}, id string, now time.Time) ([]byte, *indexedFields, error) {
	raw, err := json.Marshal(resource)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding %s: %w", resourceType, err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, nil, fmt.Errorf("%s is not a JSON object: %w", resourceType, err)
	}
	var idx indexedFields
	if err := json.Unmarshal(raw, &idx); err != nil {
		return nil, nil, fmt.Errorf("reading %s fields: %w", resourceType, err)
	}
	if idx.ResourceType != resourceType {
		return nil, nil, fmt.Errorf("resourceType %q does not match %q", idx.ResourceType, resourceType)
	}

	doc["id"] = id
	doc["meta"] = fhir.Meta{VersionID: "1", LastUpdated: &now}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, nil, err
	}
	return out, &idx, nil
}

// Create stores an Observation and returns its server-assigned id.
func (s *ObservationStore) Create(ctx context.Context, resourceType string, resource interface{}) (*fhir.CreatedResource, error) {
	if resourceType != "Observation" {
		return nil, fmt.Errorf("unsupported resource type %q", resourceType)
	}
	id := uuid.New()
	now := s.now().UTC()

	doc, idx, err := prepareDocument(resourceType, resource, id.String(), now)
	if err != nil {
		return nil, err
	}
	code := ""
	if len(idx.Code.Coding) > 0 {
		code = idx.Code.Coding[0].Code
	}

	_, err = s.conn.Exec(ctx, `
		INSERT INTO observations (id, subject, code, effective_at, resource, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)`,
		id, idx.Subject.Reference, code, idx.EffectiveDateTime, doc, now)
	if err != nil {
		return nil, fmt.Errorf("insert observation: %w", err)
	}
	return &fhir.CreatedResource{
		ResourceType: resourceType,
		ID:           id.String(),
		VersionID:    "1",
		LastUpdated:  &now,
	}, nil
}

// Get returns the stored document for id.
func (s *ObservationStore) Get(ctx context.Context, id string) (json.RawMessage, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var doc []byte
	err = s.conn.QueryRow(ctx, `SELECT resource FROM observations WHERE id = $1`, uid).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select observation: %w", err)
	}
	return doc, nil
}

// Search lists observations newest first, optionally filtered by subject
// reference, and returns the total match count.
func (s *ObservationStore) Search(ctx context.Context, subject string, limit, offset int) ([]fhir.StoredResource, int, error) {
	where, args := "", []interface{}{}
	if subject != "" {
		where = "WHERE subject = $1"
		args = append(args, subject)
	}

	var total int
	if err := s.conn.QueryRow(ctx, `SELECT COUNT(*) FROM observations `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count observations: %w", err)
	}

	n := len(args)
	query := fmt.Sprintf(`SELECT id, resource FROM observations %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, where, n+1, n+2)
	rows, err := s.conn.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("search observations: %w", err)
	}
	defer rows.Close()

	var items []fhir.StoredResource
	for rows.Next() {
		var id uuid.UUID
		var doc []byte
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, 0, fmt.Errorf("scan observation: %w", err)
		}
		items = append(items, fhir.StoredResource{ID: id.String(), Resource: doc})
	}
	return items, total, rows.Err()
}
