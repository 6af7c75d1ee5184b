package chi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/kailas-cloud/bullion/internal/domain"
	"github.com/kailas-cloud/bullion/internal/domain/search/filter"
	"github.com/kailas-cloud/bullion/internal/domain/search/result"
	domvs "github.com/kailas-cloud/bullion/internal/domain/vectorstore"
	searchuc "github.com/kailas-cloud/bullion/internal/usecase/search"
	usageuc "github.com/kailas-cloud/bullion/internal/usecase/usage"
)

const headerEmbeddingTokens = "X-Embedding-Tokens"

// maxBodyBytes caps request bodies; a 1536-float embedding is well under it.
const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

type usageResponse struct {
	Period      string `json:"period"`
	PeriodStart int64  `json:"periodStart"`
	PeriodEnd   int64  `json:"periodEnd"`
	TokensLimit int64  `json:"tokensLimit"`
	TokensUsed  int64  `json:"tokensUsed"`
	// -1 when unlimited
	TokensRemaining int64 `json:"tokensRemaining"`
	IsExhausted     bool  `json:"isExhausted"`
	ResetsAt        int64 `json:"resetsAt"`
}

func usageToJSON(r usageuc.Report) usageResponse {
	return usageResponse{
		Period:          string(r.Period),
		PeriodStart:     r.Start.UnixMilli(),
		PeriodEnd:       r.End.UnixMilli(),
		TokensLimit:     r.Limit,
		TokensUsed:      r.Used,
		TokensRemaining: r.Remaining,
		IsExhausted:     r.Exhausted,
		ResetsAt:        r.End.UnixMilli(),
	}
}

// flexString accepts a JSON string or number, so {"minPrice": 100} and {"minPrice": "100"} agree.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*f = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("decode string: %w", err)
		}
		*f = flexString(s)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("expected string or number: %w", err)
		}
		*f = flexString(n.String())
	}
	return nil
}

type searchFiltersBody struct {
	Category  flexString `json:"category"`
	MetalType flexString `json:"metalType"`
	MinPrice  flexString `json:"minPrice"`
	MaxPrice  flexString `json:"maxPrice"`
	Limit     *int       `json:"limit"`
}

type searchBody struct {
	Query   string            `json:"query"`
	Filters searchFiltersBody `json:"filters"`
	Limit   *int              `json:"limit"`
}

func (b *searchBody) raw() filter.Raw {
	return filter.Raw{
		Category:  string(b.Filters.Category),
		MetalType: string(b.Filters.MetalType),
		MinPrice:  string(b.Filters.MinPrice),
		MaxPrice:  string(b.Filters.MaxPrice),
	}
}

// limit prefers the top-level limit and falls back to filters.limit.
func (b *searchBody) limit() *int {
	if b.Limit != nil {
		return b.Limit
	}
	return b.Filters.Limit
}

type productJSON struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Description     string         `json:"description"`
	MetalType       string         `json:"metalType"`
	Category        string         `json:"category"`
	Condition       string         `json:"condition"`
	Weight          float64        `json:"weight"`
	WeightUnit      string         `json:"weightUnit"`
	Purity          float64        `json:"purity"`
	Price           float64        `json:"price"`
	Currency        string         `json:"currency"`
	SKU             string         `json:"sku"`
	StockCount      int            `json:"stockCount"`
	Metadata        map[string]any `json:"metadata"`
	Mint            *string        `json:"mint"`
	Grade           *string        `json:"grade"`
	JewelryType     *string        `json:"jewelryType"`
	RelevanceScore  *float64       `json:"relevanceScore,omitempty"`
	SimilarityScore *float64       `json:"similarityScore,omitempty"`
}

type filtersJSON struct {
	Category  *string  `json:"category"`
	MetalType *string  `json:"metalType"`
	MinPrice  *float64 `json:"minPrice"`
	MaxPrice  *float64 `json:"maxPrice"`
	Limit     int      `json:"limit"`
}

type searchResponse struct {
	Query      string        `json:"query"`
	Results    []productJSON `json:"results"`
	Filters    filtersJSON   `json:"filters"`
	Total      int           `json:"total"`
	SearchType string        `json:"searchType"`
}

func searchResponseToJSON(resp *searchuc.Response) searchResponse {
	results := make([]productJSON, len(resp.Results))
	for i := range resp.Results {
		results[i] = resultToJSON(&resp.Results[i])
	}

	f := filtersJSON{
		MinPrice: resp.Filters.MinPrice(),
		MaxPrice: resp.Filters.MaxPrice(),
		Limit:    resp.Limit,
	}
	if c := resp.Filters.Category(); c != nil {
		s := string(*c)
		f.Category = &s
	}
	if m := resp.Filters.MetalType(); m != nil {
		s := string(*m)
		f.MetalType = &s
	}

	return searchResponse{
		Query:      resp.Query,
		Results:    results,
		Filters:    f,
		Total:      resp.Total(),
		SearchType: string(resp.Strategy),
	}
}

func resultToJSON(r *result.Result) productJSON {
	p := r.Product()
	return productJSON{
		ID:              p.ID,
		Name:            p.Name,
		Description:     p.Description,
		MetalType:       string(p.MetalType),
		Category:        string(p.Category),
		Condition:       string(p.Condition),
		Weight:          p.Weight,
		WeightUnit:      string(p.WeightUnit),
		Purity:          p.Purity,
		Price:           p.Price,
		Currency:        string(p.Currency),
		SKU:             p.SKU,
		StockCount:      p.StockCount,
		Metadata:        p.Metadata,
		Mint:            optional(string(p.Mint)),
		Grade:           optional(string(p.Grade)),
		JewelryType:     optional(string(p.JewelryType)),
		RelevanceScore:  r.RelevanceScore(),
		SimilarityScore: r.SimilarityScore(),
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// vector store wire types

type vectorEnvelope struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

type vectorResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type storeData struct {
	Text      string         `json:"text"`
	Embedding []float32      `json:"embedding"`
	Metadata  map[string]any `json:"metadata"`
}

type searchData struct {
	QueryEmbedding []float32 `json:"queryEmbedding"`
	Limit          *int      `json:"limit"`
	Threshold      *float64  `json:"threshold"`
}

type storeMessageData struct {
	SessionID string    `json:"sessionId"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Embedding []float32 `json:"embedding"`
}

type historyData struct {
	SessionID string `json:"sessionId"`
}

type createSessionData struct {
	Title *string `json:"title"`
}

type documentJSON struct {
	ID        string         `json:"id"`
	Text      string         `json:"text"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt time.Time      `json:"createdAt"`
}

type matchJSON struct {
	ID         string         `json:"id"`
	Text       string         `json:"text"`
	Similarity float64        `json:"similarity"`
	Metadata   map[string]any `json:"metadata"`
}

type sessionJSON struct {
	ID        string    `json:"id"`
	Title     *string   `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
}

type messageJSON struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// vectorPayloadToJSON converts a store command result into its wire form.
func vectorPayloadToJSON(v any) any {
	switch p := v.(type) {
	case domvs.Document:
		return documentJSON{ID: p.ID, Text: p.Text, Metadata: p.Metadata, CreatedAt: p.CreatedAt}
	case []domvs.Match:
		out := make([]matchJSON, len(p))
		for i, m := range p {
			out[i] = matchJSON{ID: m.ID, Text: m.Text, Similarity: m.Similarity, Metadata: m.Metadata}
		}
		return out
	case domvs.Session:
		return sessionJSON{ID: p.ID, Title: p.Title, CreatedAt: p.CreatedAt}
	case domvs.Message:
		return messageToJSON(p)
	case []domvs.Message:
		out := make([]messageJSON, len(p))
		for i, m := range p {
			out[i] = messageToJSON(m)
		}
		return out
	default:
		return v
	}
}

func messageToJSON(m domvs.Message) messageJSON {
	return messageJSON{
		ID:        m.ID,
		SessionID: m.SessionID,
		Role:      string(m.Role),
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage != nil && usage.Used {
		w.Header().Set(headerEmbeddingTokens, strconv.Itoa(usage.TotalTokens))
	}
}

// writeJSON encodes v before writing the header, so an unencodable value
// (a NaN score, say) becomes a 500 envelope instead of an empty 200.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.Marshal(errorResponse{Error: msgInternal})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
