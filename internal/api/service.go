// Package api is the request surface shared by every transport. Each
// operation takes the caller identity and returns a response carrying
// success, a diagnostic error and a user facing message. Failures are
// converted into that shape here and nowhere else.
package api

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xaenox/tracely/internal/advisor"
	"github.com/xaenox/tracely/internal/aggregator"
	"github.com/xaenox/tracely/internal/chat"
	"github.com/xaenox/tracely/internal/classifier"
	"github.com/xaenox/tracely/internal/models"
	"github.com/xaenox/tracely/internal/recommend"
	"github.com/xaenox/tracely/internal/storage"
)

// Deps are the components a Service dispatches to. They are built once at
// startup and shared by every request.
type Deps struct {
	Classifier  classifier.Classifier
	Facts       storage.FactStore
	Profiles    storage.ProfileStore
	Aggregator  *aggregator.Aggregator
	Recommender *recommend.Generator
	Chat        *chat.Agent
	Advisor     *advisor.Advisor
}

type Service struct {
	classifier  classifier.Classifier
	facts       storage.FactStore
	profiles    storage.ProfileStore
	aggregator  *aggregator.Aggregator
	recommender *recommend.Generator
	chat        *chat.Agent
	advisor     *advisor.Advisor
	logger      *zap.Logger
}

func NewService(deps Deps, logger *zap.Logger) *Service {
	return &Service{
		classifier:  deps.Classifier,
		facts:       deps.Facts,
		profiles:    deps.Profiles,
		aggregator:  deps.Aggregator,
		recommender: deps.Recommender,
		chat:        deps.Chat,
		advisor:     deps.Advisor,
		logger:      logger.With(zap.String("component", "api")),
	}
}

// authorize rejects anonymous callers and refreshes the profile of known
// ones. A failed profile refresh never blocks the operation.
func (s *Service) authorize(ctx context.Context, caller Caller) bool {
	if !caller.Authenticated() {
		return false
	}
	if s.profiles == nil {
		return true
	}
	if err := s.profiles.UpsertProfile(ctx, profileOf(caller)); err != nil {
		s.logger.Warn("Could not update user profile",
			zap.String("user_id", caller.UserID),
			zap.Error(err))
	}
	return true
}

func profileOf(c Caller) models.Profile {
	return models.Profile{UserID: c.UserID, Email: c.Email, Name: c.Name, Picture: c.Picture}
}

func (s *Service) logFailure(op string, caller Caller, err error) {
	s.logger.Error("Operation failed",
		zap.String("operation", op),
		zap.String("user_id", caller.UserID),
		zap.String("kind", string(Classify(err))),
		zap.Error(err))
}

func unauthenticated() Status {
	return fail(errAuthenticationRequired, msgAuthenticationRequired)
}

// SubmitMessage stores a fact extracted from the message, or answers it when
// the message is a query.
func (s *Service) SubmitMessage(ctx context.Context, caller Caller, req SubmitMessageRequest) SubmitMessageResponse {
	if !s.authorize(ctx, caller) {
		return SubmitMessageResponse{Status: unauthenticated()}
	}

	switch req.Type {
	case MessageTypeFact, "":
		return s.submitFact(ctx, caller, req.Message)
	case MessageTypeQuery:
		answer, err := s.advisor.Answer(ctx, caller.UserID, req.Message)
		if err != nil {
			s.logFailure("submit_message", caller, err)
			return SubmitMessageResponse{Status: fail(err.Error(), msgProcessingError)}
		}
		return SubmitMessageResponse{Status: ok(answer), Type: TypeAIResponse}
	default:
		return SubmitMessageResponse{Status: fail(errInvalidMessageType, msgInvalidMessageType)}
	}
}

func (s *Service) submitFact(ctx context.Context, caller Caller, message string) SubmitMessageResponse {
	result := s.classifier.Classify(ctx, message)
	if result.IsSkipped() {
		if result.Reason == classifier.ReasonModelFailure {
			return SubmitMessageResponse{
				Status: fail("model invocation failed", msgProcessingError),
				Type:   TypeProcessingError,
			}
		}
		s.logger.Info("No fact extracted",
			zap.String("user_id", caller.UserID),
			zap.String("reason", string(result.Reason)))
		return SubmitMessageResponse{
			Status: fail("", msgNoFactExtracted),
			Type:   TypeNoFactExtracted,
		}
	}

	fact := result.Candidate.Fact(caller.UserID)
	if err := s.facts.CreateFact(ctx, fact); err != nil {
		s.logFailure("submit_message", caller, err)
		return SubmitMessageResponse{
			Status: fail(err.Error(), msgSaveError),
			Type:   TypeSaveError,
		}
	}

	s.logger.Info("Fact saved",
		zap.String("user_id", caller.UserID),
		zap.String("fact_id", fact.ID),
		zap.Strings("tags", models.TagStrings(fact.Tags)))

	return SubmitMessageResponse{
		Status:   ok(fmt.Sprintf("Fatto salvato: \"%s\"", fact.Text)),
		Type:     TypeFactSaved,
		FactID:   fact.ID,
		FactData: factData(result.Candidate),
	}
}

func factData(c classifier.Candidate) *FactData {
	return &FactData{Fact: c.Text, Tags: c.Tags, Sentiment: c.Sentiment}
}

func listLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return limit
}

// ListFacts returns the newest facts, optionally restricted to one tag.
func (s *Service) ListFacts(ctx context.Context, caller Caller, req ListFactsRequest) ListFactsResponse {
	if !s.authorize(ctx, caller) {
		return ListFactsResponse{Status: unauthenticated(), Facts: []models.Fact{}}
	}

	var (
		facts []models.Fact
		err   error
	)
	limit := listLimit(req.Limit)
	if tag := strings.TrimSpace(req.Tag); tag != "" {
		facts, err = s.aggregator.FactsByTag(ctx, caller.UserID, models.Tag(strings.ToLower(tag)), limit)
	} else {
		facts, err = s.aggregator.Facts(ctx, caller.UserID, limit)
	}
	if err != nil {
		s.logFailure("list_facts", caller, err)
		return ListFactsResponse{Status: fail(err.Error(), msgFactsUnavailable), Facts: []models.Fact{}}
	}
	return ListFactsResponse{Status: ok(""), Facts: facts, Count: len(facts)}
}

// FactsSummary returns the facts keyed by every tag they carry.
func (s *Service) FactsSummary(ctx context.Context, caller Caller) FactsSummaryResponse {
	empty := map[models.Tag][]models.Fact{}
	if !s.authorize(ctx, caller) {
		return FactsSummaryResponse{Status: unauthenticated(), FactsByTag: empty}
	}

	summary, err := s.aggregator.FactsSummary(ctx, caller.UserID)
	if err != nil {
		s.logFailure("facts_summary", caller, err)
		return FactsSummaryResponse{Status: fail(err.Error(), msgFactsUnavailable), FactsByTag: empty}
	}
	return FactsSummaryResponse{
		Status:     ok(""),
		FactsByTag: summary,
		TagCounts:  aggregator.CountByTag(summary),
		TotalFacts: aggregator.Total(summary),
	}
}

func emptyHierarchy() [][]models.Fact {
	return aggregator.GroupByPriority(nil)
}

// FactsByPriority returns the newest facts grouped by their highest ranked tag.
func (s *Service) FactsByPriority(ctx context.Context, caller Caller, req FactsByPriorityRequest) FactsByPriorityResponse {
	if !s.authorize(ctx, caller) {
		return FactsByPriorityResponse{Status: unauthenticated(), FactsHierarchy: emptyHierarchy()}
	}

	buckets, err := s.aggregator.FactsByPriority(ctx, caller.UserID, listLimit(req.Limit))
	if err != nil {
		s.logFailure("facts_by_priority", caller, err)
		return FactsByPriorityResponse{Status: fail(err.Error(), msgFactsUnavailable), FactsHierarchy: emptyHierarchy()}
	}

	counts := make([]int, len(buckets))
	total := 0
	for i, b := range buckets {
		counts[i] = len(b)
		total += len(b)
	}
	return FactsByPriorityResponse{
		Status:          ok(""),
		FactsHierarchy:  buckets,
		TagNames:        models.AllTags(),
		HierarchyCounts: counts,
		TotalFacts:      total,
	}
}

// GenerateRecommendations asks the model for suggestions. Counts outside the
// accepted range fall back to the default.
func (s *Service) GenerateRecommendations(ctx context.Context, caller Caller, req GenerateRecommendationsRequest) GenerateRecommendationsResponse {
	empty := []models.Suggestion{}
	if !s.authorize(ctx, caller) {
		return GenerateRecommendationsResponse{Status: unauthenticated(), Suggestions: empty}
	}

	result, err := s.recommender.Generate(ctx, caller.UserID, req.Tags, req.Count)
	if err != nil {
		var parseErr *recommend.ParseError
		switch {
		case errors.Is(err, recommend.ErrNoValidTags):
			return GenerateRecommendationsResponse{Status: fail(errNoValidTags, msgNoValidTags), Suggestions: empty}
		case errors.Is(err, recommend.ErrNoFacts):
			return GenerateRecommendationsResponse{Status: fail(errNoFacts, msgNoFacts), Suggestions: empty}
		case errors.As(err, &parseErr):
			s.logFailure("generate_recommendations", caller, err)
			return GenerateRecommendationsResponse{
				Status:      fail(errParseResponse, msgRecommendationFailure),
				Suggestions: empty,
				RawResponse: parseErr.Raw,
			}
		default:
			s.logFailure("generate_recommendations", caller, err)
			return GenerateRecommendationsResponse{Status: fail(err.Error(), msgRecommendationFailure), Suggestions: empty}
		}
	}

	return GenerateRecommendationsResponse{
		Status:         ok(""),
		Suggestions:    result.Suggestions,
		Count:          len(result.Suggestions),
		SelectedTags:   result.SelectedTags,
		TotalFactsUsed: result.TotalFactsUsed,
	}
}

// RecommendationTags lists the taxonomy and the caller's facts per tag.
func (s *Service) RecommendationTags(ctx context.Context, caller Caller) RecommendationTagsResponse {
	if !s.authorize(ctx, caller) {
		return RecommendationTagsResponse{
			Status:        unauthenticated(),
			AvailableTags: []models.Tag{},
			UserTagStats:  map[models.Tag]int{},
		}
	}

	tags, stats, err := s.recommender.TagStats(ctx, caller.UserID)
	if err != nil {
		s.logFailure("recommendation_tags", caller, err)
		return RecommendationTagsResponse{
			Status:        fail(err.Error(), msgFactsUnavailable),
			AvailableTags: []models.Tag{},
			UserTagStats:  map[models.Tag]int{},
		}
	}

	total := 0
	for _, n := range stats {
		total += n
	}
	return RecommendationTagsResponse{Status: ok(""), AvailableTags: tags, UserTagStats: stats, TotalFacts: total}
}

// UpdateFact reclassifies new text for an existing fact. A missing fact is
// reported before the classifier runs.
func (s *Service) UpdateFact(ctx context.Context, caller Caller, req UpdateFactRequest) UpdateFactResponse {
	if !s.authorize(ctx, caller) {
		return UpdateFactResponse{Status: unauthenticated()}
	}
	if strings.TrimSpace(req.FactID) == "" || strings.TrimSpace(req.FactText) == "" {
		return UpdateFactResponse{Status: fail(errMissingFactFields, msgMissingFields)}
	}

	if _, err := s.facts.GetFact(ctx, caller.UserID, req.FactID); err != nil {
		return UpdateFactResponse{Status: s.factFailure("update_fact", caller, err)}
	}

	result := s.classifier.Classify(ctx, req.FactText)
	if result.IsSkipped() {
		return UpdateFactResponse{Status: fail(errInvalidFactContent, msgInvalidFactContent)}
	}

	if err := s.facts.UpdateFact(ctx, caller.UserID, req.FactID, result.Candidate.Update()); err != nil {
		return UpdateFactResponse{Status: s.factFailure("update_fact", caller, err)}
	}

	s.logger.Info("Fact updated",
		zap.String("user_id", caller.UserID),
		zap.String("fact_id", req.FactID))
	return UpdateFactResponse{Status: ok(msgFactUpdated), Fact: factData(result.Candidate)}
}

// DeleteFact removes one of the caller's facts.
func (s *Service) DeleteFact(ctx context.Context, caller Caller, req DeleteFactRequest) DeleteFactResponse {
	if !s.authorize(ctx, caller) {
		return DeleteFactResponse{Status: unauthenticated()}
	}
	if strings.TrimSpace(req.FactID) == "" {
		return DeleteFactResponse{Status: fail(errMissingFactID, msgMissingFields)}
	}

	if err := s.facts.DeleteFact(ctx, caller.UserID, req.FactID); err != nil {
		return DeleteFactResponse{Status: s.factFailure("delete_fact", caller, err)}
	}

	s.logger.Info("Fact deleted",
		zap.String("user_id", caller.UserID),
		zap.String("fact_id", req.FactID))
	return DeleteFactResponse{Status: ok(msgFactDeleted)}
}

func (s *Service) factFailure(op string, caller Caller, err error) Status {
	if Classify(err) == KindNotFound {
		return fail(errFactNotFound, msgFactNotFound)
	}
	s.logFailure(op, caller, err)
	return fail(err.Error(), msgProcessingError)
}

// Chat runs one conversation turn. Any failure yields an apology instead of
// a reply.
func (s *Service) Chat(ctx context.Context, caller Caller, req ChatRequest) ChatResponse {
	if !s.authorize(ctx, caller) {
		return ChatResponse{Status: unauthenticated()}
	}

	reply, err := s.chat.Chat(ctx, caller.UserID, req.Message)
	if err != nil {
		if errors.Is(err, chat.ErrEmptyMessage) {
			return ChatResponse{Status: fail(errEmptyMessage, msgChatFailure), Response: msgChatFailure}
		}
		s.logFailure("chat", caller, err)
		return ChatResponse{Status: fail(err.Error(), msgChatFailure), Response: msgChatFailure}
	}

	return ChatResponse{
		Status:         ok(""),
		Response:       reply.Response,
		SessionID:      reply.SessionID,
		MessageCount:   reply.MessageCount,
		FactsAvailable: reply.FactsAvailable,
	}
}

// ChatHistory returns the caller's conversation. No session is an empty
// history, not a failure.
func (s *Service) ChatHistory(ctx context.Context, caller Caller) ChatHistoryResponse {
	if !s.authorize(ctx, caller) {
		return ChatHistoryResponse{Status: unauthenticated(), Messages: []models.ChatMessage{}}
	}

	session, err := s.chat.History(ctx, caller.UserID)
	if err != nil {
		s.logFailure("chat_history", caller, err)
		return ChatHistoryResponse{Status: fail(err.Error(), msgChatUnavailable), Messages: []models.ChatMessage{}}
	}

	resp := ChatHistoryResponse{
		Status:       ok(""),
		Messages:     session.Messages,
		MessageCount: len(session.Messages),
	}
	if !session.CreatedAt.IsZero() {
		created, last := session.CreatedAt, session.LastActivity
		resp.CreatedAt = &created
		resp.LastActivity = &last
	}
	return resp
}

// ClearChat deletes the caller's conversation. Clearing twice is harmless.
func (s *Service) ClearChat(ctx context.Context, caller Caller) ClearChatResponse {
	if !s.authorize(ctx, caller) {
		return ClearChatResponse{Status: unauthenticated()}
	}

	cleared, err := s.chat.Clear(ctx, caller.UserID)
	if err != nil {
		s.logFailure("clear_chat", caller, err)
		return ClearChatResponse{Status: fail(err.Error(), msgChatUnavailable)}
	}
	if cleared == 0 {
		return ClearChatResponse{Status: ok(msgNoChat)}
	}
	return ClearChatResponse{Status: ok(fmt.Sprintf(msgChatCleared, cleared)), ClearedMessages: cleared}
}

// GenerateRandomCards returns template cards of the requested kind, padded
// with tips up to the requested count.
func (s *Service) GenerateRandomCards(ctx context.Context, caller Caller, req GenerateRandomCardsRequest) GenerateRandomCardsResponse {
	if !s.authorize(ctx, caller) {
		return GenerateRandomCardsResponse{Status: unauthenticated(), Cards: []advisor.Card{}}
	}

	cards, err := s.advisor.Cards(ctx, caller.UserID, req.Type, req.Count)
	if err != nil {
		s.logFailure("generate_random_cards", caller, err)
		return GenerateRandomCardsResponse{Status: fail(err.Error(), msgCardsUnavailable), Cards: []advisor.Card{}}
	}
	return GenerateRandomCardsResponse{Status: ok(""), Cards: cards}
}

// StoreProfile records the caller's identity.
func (s *Service) StoreProfile(ctx context.Context, caller Caller) StoreProfileResponse {
	if !caller.Authenticated() {
		return StoreProfileResponse{Status: fail(errAuthenticationRequired, msgProfileAuthRequired)}
	}
	if s.profiles == nil {
		return StoreProfileResponse{Status: fail(errProfilesUnavailable, msgProfileError)}
	}

	if err := s.profiles.UpsertProfile(ctx, profileOf(caller)); err != nil {
		s.logFailure("store_profile", caller, err)
		return StoreProfileResponse{Status: fail(err.Error(), msgProfileError)}
	}
	return StoreProfileResponse{
		Status:  ok(msgProfileSaved),
		Profile: &ProfileData{Email: caller.Email, Name: caller.Name, Picture: caller.Picture},
	}
}
