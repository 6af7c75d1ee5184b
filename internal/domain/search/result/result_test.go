package result

import (
	"testing"

	"github.com/kailas-cloud/bullion/internal/domain/product"
	"github.com/kailas-cloud/bullion/internal/domain/search/strategy"
)

func TestNew(t *testing.T) {
	p := product.Product{ID: "p-1", Name: "Gold Bar", Price: 1500}
	r := New(p, 0.42, strategy.Text)

	if r.Product().ID != "p-1" {
		t.Errorf("Product().ID = %q", r.Product().ID)
	}
	if r.Score() != 0.42 {
		t.Errorf("Score() = %f", r.Score())
	}
	if r.Strategy() != strategy.Text {
		t.Errorf("Strategy() = %q", r.Strategy())
	}
}

func TestScores_ExactlyOne(t *testing.T) {
	text := New(product.Product{}, 0.3, strategy.Text)
	if text.RelevanceScore() == nil || *text.RelevanceScore() != 0.3 {
		t.Errorf("RelevanceScore() = %v", text.RelevanceScore())
	}
	if text.SimilarityScore() != nil {
		t.Error("text hit must not carry a similarity score")
	}

	vec := New(product.Product{}, 0.9, strategy.Vector)
	if vec.SimilarityScore() == nil || *vec.SimilarityScore() != 0.9 {
		t.Errorf("SimilarityScore() = %v", vec.SimilarityScore())
	}
	if vec.RelevanceScore() != nil {
		t.Error("vector hit must not carry a relevance score")
	}
}

func TestLess(t *testing.T) {
	high := New(product.Product{Price: 3000}, 0.9, strategy.Vector)
	low := New(product.Product{Price: 10}, 0.5, strategy.Vector)
	if !Less(&high, &low) {
		t.Error("higher score sorts first")
	}
	if Less(&low, &high) {
		t.Error("lower score sorts last")
	}

	cheap := New(product.Product{Price: 100}, 0.5, strategy.Vector)
	dear := New(product.Product{Price: 200}, 0.5, strategy.Vector)
	if !Less(&cheap, &dear) {
		t.Error("equal scores tie-break on ascending price")
	}
	if Less(&dear, &cheap) {
		t.Error("more expensive product sorts after cheaper one on tie")
	}
}
