// Package vectorstore dispatches the generic similarity store actions.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/bullion/internal/domain"
	domvs "github.com/kailas-cloud/bullion/internal/domain/vectorstore"
	"github.com/kailas-cloud/bullion/internal/logger"
	"github.com/kailas-cloud/bullion/internal/metrics"
)

// Service executes store commands against the repository.
type Service struct {
	repo       Repository
	dimensions int
}

// New creates a vector store service. dimensions <= 0 disables the length check.
func New(repo Repository, dimensions int) *Service {
	return &Service{repo: repo, dimensions: dimensions}
}

// Execute runs cmd and returns its payload:
// Document, []Match, Message, []Message or Session.
func (s *Service) Execute(ctx context.Context, cmd Command) (any, error) {
	var (
		out any
		err error
	)
	switch c := cmd.(type) {
	case StoreCommand:
		out, err = s.store(ctx, c)
	case SearchCommand:
		out, err = s.search(ctx, c)
	case StoreMessageCommand:
		out, err = s.storeMessage(ctx, c)
	case GetHistoryCommand:
		out, err = s.history(ctx, c)
	case CreateSessionCommand:
		out, err = s.repo.CreateSession(ctx, c.Title)
	default:
		return nil, fmt.Errorf("%w: unsupported action %T", domain.ErrValidation, cmd)
	}

	observe(ctx, cmd.Action(), err)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cmd.Action(), err)
	}
	return out, nil
}

func (s *Service) store(ctx context.Context, c StoreCommand) (domvs.Document, error) {
	if strings.TrimSpace(c.Text) == "" {
		return domvs.Document{}, fmt.Errorf("%w: text is required", domain.ErrValidation)
	}
	if err := s.checkVector(c.Embedding, true); err != nil {
		return domvs.Document{}, err
	}
	return s.repo.Store(ctx, c.Text, c.Embedding, c.Metadata) //nolint:wrapcheck // wrapped by Execute
}

func (s *Service) search(ctx context.Context, c SearchCommand) ([]domvs.Match, error) {
	if err := s.checkVector(c.Embedding, true); err != nil {
		return nil, err
	}

	limit := domvs.DefaultSearchLimit
	if c.Limit != nil {
		if *c.Limit < 1 {
			return nil, fmt.Errorf("%w: limit must be positive", domain.ErrValidation)
		}
		limit = *c.Limit
	}

	threshold := domvs.DefaultSearchThreshold
	if c.Threshold != nil {
		t := *c.Threshold
		if math.IsNaN(t) || t < -1 || t > 1 {
			return nil, fmt.Errorf("%w: threshold must be within [-1, 1]", domain.ErrValidation)
		}
		threshold = t
	}

	matches, err := s.repo.Search(ctx, c.Embedding, limit, threshold)
	if err != nil {
		return nil, err //nolint:wrapcheck // wrapped by Execute
	}
	// Rows stored before zero vectors were rejected score NaN.
	return slices.DeleteFunc(matches, func(m domvs.Match) bool {
		return math.IsNaN(m.Similarity) || math.IsInf(m.Similarity, 0)
	}), nil
}

func (s *Service) storeMessage(ctx context.Context, c StoreMessageCommand) (domvs.Message, error) {
	if c.SessionID == "" {
		return domvs.Message{}, fmt.Errorf("%w: sessionId is required", domain.ErrValidation)
	}
	if !c.Role.IsValid() {
		return domvs.Message{}, fmt.Errorf("%w: invalid role %q", domain.ErrValidation, c.Role)
	}
	if strings.TrimSpace(c.Content) == "" {
		return domvs.Message{}, fmt.Errorf("%w: content is required", domain.ErrValidation)
	}
	if err := s.checkVector(c.Embedding, false); err != nil {
		return domvs.Message{}, err
	}
	//nolint:wrapcheck // wrapped by Execute
	return s.repo.StoreMessage(ctx, c.SessionID, c.Role, c.Content, c.Embedding)
}

func (s *Service) history(ctx context.Context, c GetHistoryCommand) ([]domvs.Message, error) {
	if c.SessionID == "" {
		return nil, fmt.Errorf("%w: sessionId is required", domain.ErrValidation)
	}
	return s.repo.History(ctx, c.SessionID) //nolint:wrapcheck // wrapped by Execute
}

// checkVector validates an embedding. A nil vector passes when it is optional.
func (s *Service) checkVector(vec []float32, required bool) error {
	if len(vec) == 0 {
		if required {
			return fmt.Errorf("%w: embedding is required", domain.ErrValidation)
		}
		return nil
	}
	if err := domain.CheckNorm(vec); err != nil {
		return err //nolint:wrapcheck // sentinel already attached
	}
	return domain.CheckDimensions(vec, s.dimensions) //nolint:wrapcheck // sentinel already attached
}

func observe(ctx context.Context, action string, err error) {
	status := metrics.StatusOK
	switch {
	case err == nil:
	case domain.IsClientError(err), errors.Is(err, domain.ErrNotFound):
		status = metrics.StatusClientError
	default:
		status = metrics.StatusError
		logger.FromContext(ctx).Warn("Vector store action failed",
			zap.String("action", action), zap.Error(err))
	}
	metrics.VectorStoreOpsTotal.WithLabelValues(action, status).Inc()
}
