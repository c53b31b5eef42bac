package observation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/vitals/vitals/internal/platform/fhir"
	"github.com/vitals/vitals/pkg/fhirmodels"
	"github.com/vitals/vitals/pkg/pagination"
)

// ErrNotFound is returned by a Reader for unknown ids.
var ErrNotFound = errors.New("observation not found")

// Reader reads stored Observation documents.
type Reader interface {
	Get(ctx context.Context, id string) (json.RawMessage, error)
	Search(ctx context.Context, subject string, limit, offset int) ([]fhir.StoredResource, int, error)
}

type Handler struct {
	reader   Reader
	notFound func(error) bool
}

// NewHandler serves reads from r. isNotFound recognizes the store's
// not-found error; nil means errors.Is(err, ErrNotFound).
func NewHandler(r Reader, isNotFound func(error) bool) *Handler {
	if isNotFound == nil {
		isNotFound = func(err error) bool { return errors.Is(err, ErrNotFound) }
	}
	return &Handler{reader: r, notFound: isNotFound}
}

func (h *Handler) RegisterRoutes(fhirGroup *echo.Group) {
	fhirGroup.GET("/Observation", h.SearchObservations)
	fhirGroup.GET("/Observation/:id", h.GetObservation)
}

// SearchObservations returns a searchset Bundle, optionally filtered by
// ?subject=Patient/{id} or ?patient={id}.
func (h *Handler) SearchObservations(c echo.Context) error {
	pg := pagination.FromContext(c)

	subject := c.QueryParam("subject")
	if subject == "" {
		if p := c.QueryParam("patient"); p != "" {
			subject = fhir.FormatReference(fhirmodels.ResourcePatient, p)
		}
	}

	items, total, err := h.reader.Search(c.Request().Context(), subject, pg.Limit, pg.Offset)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, fhir.ErrorOutcome(err.Error()))
	}

	const base = "/fhir/Observation"
	filters := url.Values{}
	if subject != "" {
		filters.Set("subject", subject)
	}
	var links []fhir.BundleLink
	for _, l := range pg.FHIRLinks(base, total, filters) {
		links = append(links, fhir.BundleLink{Relation: l.Relation, URL: l.URL})
	}
	return c.JSON(http.StatusOK, fhir.NewSearchBundle(items, total, base, links))
}

func (h *Handler) GetObservation(c echo.Context) error {
	id := c.Param("id")
	doc, err := h.reader.Get(c.Request().Context(), id)
	if err != nil {
		if h.notFound(err) {
			return c.JSON(http.StatusNotFound, fhir.NotFoundOutcome(fhirmodels.ResourceObservation, id))
		}
		return c.JSON(http.StatusInternalServerError, fhir.ErrorOutcome(err.Error()))
	}
	return c.Blob(http.StatusOK, fhirmodels.ContentTypeFHIRJSON, doc)
}
