package api

import (
	"time"

	"github.com/xaenox/tracely/internal/advisor"
	"github.com/xaenox/tracely/internal/models"
)

// Caller is the identity injected by the transport. An empty UserID means
// the request is not authenticated.
type Caller struct {
	UserID  string
	Email   string
	Name    string
	Picture string
}

func (c Caller) Authenticated() bool {
	return c.UserID != ""
}

// Status is shared by every response.
type Status struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

func ok(message string) Status {
	return Status{Success: true, Message: message}
}

func fail(diagnostic, message string) Status {
	return Status{Success: false, Error: diagnostic, Message: message}
}

// FactData is the classified content of a fact.
type FactData struct {
	Fact      string           `json:"fact"`
	Tags      []models.Tag     `json:"tags"`
	Sentiment models.Sentiment `json:"sentiment"`
}

const (
	MessageTypeFact  = "fact"
	MessageTypeQuery = "query"
)

// Response types of SubmitMessage.
const (
	TypeFactSaved       = "fact_saved"
	TypeAIResponse      = "ai_response"
	TypeNoFactExtracted = "no_fact_extracted"
	TypeSaveError       = "save_error"
	TypeProcessingError = "processing_error"
)

type SubmitMessageRequest struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type SubmitMessageResponse struct {
	Status
	Type     string    `json:"type,omitempty"`
	FactID   string    `json:"fact_id,omitempty"`
	FactData *FactData `json:"fact_data,omitempty"`
}

const defaultListLimit = 50

type ListFactsRequest struct {
	Tag   string `json:"tag"`
	Limit int    `json:"limit"`
}

type ListFactsResponse struct {
	Status
	Facts []models.Fact `json:"facts"`
	Count int           `json:"count"`
}

type FactsSummaryResponse struct {
	Status
	FactsByTag map[models.Tag][]models.Fact `json:"facts_by_tag"`
	TagCounts  map[models.Tag]int           `json:"tag_counts,omitempty"`
	TotalFacts int                          `json:"total_facts"`
}

type FactsByPriorityRequest struct {
	Limit int `json:"limit"`
}

type FactsByPriorityResponse struct {
	Status
	FactsHierarchy  [][]models.Fact `json:"facts_hierarchy"`
	TagNames        []models.Tag    `json:"tag_names,omitempty"`
	HierarchyCounts []int           `json:"hierarchy_counts,omitempty"`
	TotalFacts      int             `json:"total_facts"`
}

type GenerateRecommendationsRequest struct {
	Tags  []string `json:"tags"`
	Count int      `json:"count"`
}

type GenerateRecommendationsResponse struct {
	Status
	Suggestions    []models.Suggestion `json:"suggestions"`
	Count          int                 `json:"count"`
	SelectedTags   []models.Tag        `json:"selected_tags,omitempty"`
	TotalFactsUsed int                 `json:"total_facts_used,omitempty"`
	RawResponse    string              `json:"raw_response,omitempty"`
}

type RecommendationTagsResponse struct {
	Status
	AvailableTags []models.Tag       `json:"available_tags"`
	UserTagStats  map[models.Tag]int `json:"user_tag_stats"`
	TotalFacts    int                `json:"total_facts"`
}

type UpdateFactRequest struct {
	FactID   string `json:"fact_id"`
	FactText string `json:"fact_text"`
}

type UpdateFactResponse struct {
	Status
	Fact *FactData `json:"fact,omitempty"`
}

type DeleteFactRequest struct {
	FactID string `json:"fact_id"`
}

type DeleteFactResponse struct {
	Status
}

type ChatRequest struct {
	Message string `json:"message"`
}

type ChatResponse struct {
	Status
	Response       string `json:"response"`
	SessionID      string `json:"session_id,omitempty"`
	MessageCount   int    `json:"message_count"`
	FactsAvailable int    `json:"facts_available"`
}

type ChatHistoryResponse struct {
	Status
	Messages     []models.ChatMessage `json:"messages"`
	MessageCount int                  `json:"message_count"`
	CreatedAt    *time.Time           `json:"created_at,omitempty"`
	LastActivity *time.Time           `json:"last_activity,omitempty"`
}

type ClearChatResponse struct {
	Status
	ClearedMessages int `json:"cleared_messages"`
}

type ProfileData struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

type StoreProfileResponse struct {
	Status
	Profile *ProfileData `json:"profile,omitempty"`
}

type GenerateRandomCardsRequest struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

type GenerateRandomCardsResponse struct {
	Status
	Cards []advisor.Card `json:"cards"`
}
