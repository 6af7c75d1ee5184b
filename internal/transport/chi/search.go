package chi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/oapi-codegen/runtime"

	"github.com/kailas-cloud/bullion/internal/domain"
	"github.com/kailas-cloud/bullion/internal/domain/search/filter"
	"github.com/kailas-cloud/bullion/internal/domain/search/request"
	"github.com/kailas-cloud/bullion/internal/domain/search/strategy"
)

// searchParams are the query parameters shared by both GET search routes.
type searchParams struct {
	Q         *string
	Query     *string
	Limit     *int
	Category  *string
	MetalType *string
	MinPrice  *string
	MaxPrice  *string
}

func bindSearchParams(r *http.Request) (searchParams, error) {
	var p searchParams
	q := r.URL.Query()
	bindings := []struct {
		name string
		dest any
	}{
		{"q", &p.Q},
		{"query", &p.Query},
		{"limit", &p.Limit},
		{"category", &p.Category},
		{"metalType", &p.MetalType},
		{"minPrice", &p.MinPrice},
		{"maxPrice", &p.MaxPrice},
	}
	for _, b := range bindings {
		// An empty value means absent, e.g. limit= from a cleared form field.
		if q.Get(b.name) == "" {
			continue
		}
		if err := runtime.BindQueryParameter("form", true, false, b.name, q, b.dest); err != nil {
			return searchParams{}, &paramError{name: b.name}
		}
	}
	return p, nil
}

func (p *searchParams) raw() filter.Raw {
	return filter.Raw{
		Category:  deref(p.Category),
		MetalType: deref(p.MetalType),
		MinPrice:  deref(p.MinPrice),
		MaxPrice:  deref(p.MaxPrice),
	}
}

type paramError struct{ name string }

func (e *paramError) Error() string { return "Invalid format for parameter " + e.name }

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// TextSearchGet handles GET /search/text.
func (s *Server) TextSearchGet(w http.ResponseWriter, r *http.Request) {
	p, err := bindSearchParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	query := deref(p.Q)
	if strings.TrimSpace(query) == "" {
		writeError(w, http.StatusBadRequest, msgQueryParamRequired)
		return
	}
	s.runSearch(w, r, query, strategy.Text, p.raw(), p.Limit, msgTextSearchFailed)
}

// TextSearchPost handles POST /search/text.
func (s *Server) TextSearchPost(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeSearchBody(w, r)
	if !ok {
		return
	}
	s.runSearch(w, r, body.Query, strategy.Text, body.raw(), body.limit(), msgTextSearchFailed)
}

// VectorSearchGet handles GET /search/vector. Accepts q or query.
func (s *Server) VectorSearchGet(w http.ResponseWriter, r *http.Request) {
	p, err := bindSearchParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	query := deref(p.Q)
	if strings.TrimSpace(query) == "" {
		query = deref(p.Query)
	}
	if strings.TrimSpace(query) == "" {
		writeError(w, http.StatusBadRequest, msgQueryParamRequired)
		return
	}
	s.runSearch(w, r, query, strategy.Vector, p.raw(), p.Limit, msgVectorSearchFailed)
}

// VectorSearchPost handles POST /search/vector.
func (s *Server) VectorSearchPost(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeSearchBody(w, r)
	if !ok {
		return
	}
	s.runSearch(w, r, body.Query, strategy.Vector, body.raw(), body.limit(), msgVectorSearchFailed)
}

func decodeSearchBody(w http.ResponseWriter, r *http.Request) (searchBody, bool) {
	var body searchBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return searchBody{}, false
	}
	if strings.TrimSpace(body.Query) == "" {
		writeError(w, http.StatusBadRequest, msgQueryRequired)
		return searchBody{}, false
	}
	return body, true
}

// runSearch validates the parsed input, calls the facade and writes the envelope.
func (s *Server) runSearch(
	w http.ResponseWriter,
	r *http.Request,
	query string,
	st strategy.Strategy,
	raw filter.Raw,
	limit *int,
	fallback string,
) {
	filters, err := filter.Parse(raw)
	if err != nil {
		s.handleDomainError(w, r, err, fallback)
		return
	}
	req, err := request.New(query, st, filters, limit, s.search.MaxLimit())
	if err != nil {
		s.handleDomainError(w, r, err, fallback)
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	resp, err := s.search.Search(ctx, &req)
	setEmbeddingHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, r, err, fallback)
		return
	}

	writeJSON(w, http.StatusOK, searchResponseToJSON(&resp))
}
