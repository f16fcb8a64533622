package signals

import (
	"time"

	"github.com/signalhq/signal/internal/prompts"
)

// Signal lifecycle statuses. Monotonic except that "opened" can be
// reached without "sent" when the rep skips explicit finalize.
const (
	StatusCreated   = "created"
	StatusSent      = "sent"
	StatusOpened    = "opened"
	StatusCompleted = "completed"
	StatusExpired   = "expired"
)

// Recommendation categories the analyzer may produce. Closed set.
const (
	RecommendationReEngage      = "re_engage"
	RecommendationPivotApproach = "pivot_approach"
	RecommendationMoveOn        = "move_on"
	RecommendationRevisitLater  = "revisit_later"
)

// ValidRecommendation reports membership in the closed recommendation set.
func ValidRecommendation(v string) bool {
	switch v {
	case RecommendationReEngage, RecommendationPivotApproach, RecommendationMoveOn, RecommendationRevisitLater:
		return true
	}
	return false
}

// NormalizeType coerces unknown signal types to deal_stalled, matching
// intake behavior.
func NormalizeType(t string) string {
	switch t {
	case prompts.SignalTypeDealStalled, prompts.SignalTypeMidDeal, prompts.SignalTypeProspecting:
		return t
	}
	return prompts.SignalTypeDealStalled
}

// Question is one tap-to-select question shown to the prospect.
type Question struct {
	QuestionText string   `json:"question_text"`
	Options      []string `json:"options"`
	MultiSelect  bool     `json:"multi_select,omitempty"`
}

// PageContent is the generated first-page payload for a Signal. Persisted
// as one JSON document; the presentation layer renders it as-is.
type PageContent struct {
	LandingH1        string     `json:"landing_h1,omitempty"`
	DealSummary      string     `json:"deal_summary,omitempty"`
	ValuePropBullets []string   `json:"value_prop_bullets,omitempty"`
	IntroParagraph   string     `json:"intro_paragraph"`
	FirstQuestion    *Question  `json:"first_question,omitempty"`
	Questions        []Question `json:"questions"`
	OpenFieldPrompt  string     `json:"open_field_prompt"`
	SuggestedEmail   string     `json:"suggested_email"`
	// Dynamic marks follow-up questions as generated turn-by-turn.
	// False means all questions were generated up front (legacy mode).
	Dynamic bool `json:"dynamic"`
}

// Signal is one outreach instance tied to a single prospect and rep.
type Signal struct {
	ID        string
	UserID    string
	AccountID string
	Type      string

	ProspectFirstName  string
	ProspectCompany    string
	ProspectWebsiteURL string
	ProspectLogoURL    string

	WhatWasPitched   string
	DealStage        string
	SpeakingDuration string
	LastContactAgo   string
	WantsToLearn     []string
	RepHypothesis    string
	LandingIntro     string
	ValueProp        string

	Content PageContent
	Slug    string
	Status  string

	CreatedAt time.Time
	ExpiresAt time.Time
}

// IsExpired evaluates the fixed TTL lazily; there is no background sweep.
func (s *Signal) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && s.ExpiresAt.Before(now)
}

// QA is one collected question/answer pair, stored as text.
type QA struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Response is the single, immutable record of a prospect's completed
// answers plus the derived analysis. At most one exists per Signal.
type Response struct {
	ID                string
	SignalID          string
	Answers           []QA
	Summary           string
	Recommendation    string
	Reasoning         string
	SuggestedNextStep string
	OpenedAt          time.Time
	CompletedAt       time.Time
}

// Signal event types for the append-only log.
const (
	EventPageOpened    = "page_opened"
	EventPageCompleted = "page_completed"
)
