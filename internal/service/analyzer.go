package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Harshitk-cp/kindred/internal/domain"
	"github.com/Harshitk-cp/kindred/internal/llm"
	"github.com/Harshitk-cp/kindred/internal/store"
)

const (
	analysisTemperature = 0.2
	analysisMaxTokens   = 800
	// AnalysisTimeout bounds one detached analysis, oracle call included.
	AnalysisTimeout = 60 * time.Second
)

// BehaviorAnalyzer judges a user message through the oracle. It never fails
// the caller: anything the oracle gets wrong is repaired or replaced by the
// fallback analysis.
type BehaviorAnalyzer struct {
	oracle domain.Oracle
	store  domain.SnapshotStore
	pub    domain.Publisher
	logger *zap.Logger
	now    func() time.Time
}

func NewBehaviorAnalyzer(oracle domain.Oracle, s domain.SnapshotStore, pub domain.Publisher, logger *zap.Logger) *BehaviorAnalyzer {
	return &BehaviorAnalyzer{
		oracle: oracle,
		store:  s,
		pub:    pub,
		logger: logger,
		now:    time.Now,
	}
}

// Analyze asks the oracle for a judgement of in.UserText, persists the
// repaired result and publishes it.
func (a *BehaviorAnalyzer) Analyze(ctx context.Context, in llm.AnalysisPromptInput) domain.BehaviorAnalysis {
	raw, err := a.oracle.Generate(ctx, llm.AnalysisPrompt(in), domain.GenerateOptions{
		JSON:        true,
		Temperature: analysisTemperature,
		MaxTokens:   analysisMaxTokens,
	})

	var result domain.BehaviorAnalysis
	if err != nil {
		a.logger.Warn("behavior analysis oracle call failed, using fallback", zap.Error(err))
		result = domain.FallbackAnalysis(in.UserText, a.now())
	} else {
		obj := llm.DecodeObject(raw)
		if obj == nil {
			a.logger.Warn("behavior analysis output unparseable, using fallback", zap.Int("raw_len", len(raw)))
		}
		result = domain.RepairAnalysis(obj, in.UserText, a.now())
	}

	if err := a.store.Save(ctx, domain.KeyBehaviorAnalysis, result); err != nil {
		a.logger.Warn("failed to persist behavior analysis", zap.Error(err))
	}
	a.pub.Publish(domain.Notification{Type: domain.NotifyAnalysisUpdate, Timestamp: a.now(), Payload: result})

	a.logger.Debug("behavior analyzed",
		zap.String("emotion", result.InferredUserEmotion),
		zap.Float64("relationship_delta", result.RelationshipScoreDelta),
		zap.Float64("confidence", result.Confidence))
	return result
}

// Latest loads the most recently persisted analysis. ok is false when none
// has been stored.
func (a *BehaviorAnalyzer) Latest(ctx context.Context) (domain.BehaviorAnalysis, bool, error) {
	var result domain.BehaviorAnalysis
	if err := a.store.Load(ctx, domain.KeyBehaviorAnalysis, &result); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return result, false, nil
		}
		return result, false, fmt.Errorf("load behavior analysis: %w", err)
	}
	return result, true, nil
}
