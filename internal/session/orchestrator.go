// Package session coordinates the multi-turn estimate conversation: it
// threads the server-assigned session identity across chat, project-detail,
// and image turns, maintains the running estimate, and falls back to the
// local rules engine when the backend cannot price a project.
package session

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/remodelai/estimate-client/internal/gateway"
	"github.com/remodelai/estimate-client/internal/mapper"
	"github.com/remodelai/estimate-client/internal/rules"
)

// Phase tracks where the conversation stands.
type Phase string

const (
	PhaseFresh            Phase = "fresh"
	PhaseConversing       Phase = "conversing"
	PhaseDetailsCollected Phase = "details_collected"
	PhaseEstimateReady    Phase = "estimate_ready"
	PhaseReportOpen       Phase = "report_open"
)

const greeting = "Hello! I'm your AI construction estimator. I can help you get an estimate for your remodeling project. Would you like to provide details about your project now?"

const (
	firstImagePrompt   = "Here's an image for you to look at."
	anotherImagePrompt = "Here's another image for you to look at."

	viewReportUserLine      = "Yes, I'd like to see the detailed estimate report."
	viewReportAssistantLine = "Great! I've generated a detailed estimate report for you below. You can view the cost breakdown, timeline, and recommendations. You can also download it as a PDF to save or share."
)

// Turn is one entry in the conversation transcript. The sequence is
// append-only; it is only ever discarded wholesale by Reset.
type Turn struct {
	ID       string `json:"id"`
	Role     string `json:"role"`
	Text     string `json:"text"`
	HasImage bool   `json:"hasImage,omitempty"`
}

// Backend is the slice of the gateway the orchestrator drives.
type Backend interface {
	Chat(ctx context.Context, text, sessionID string) (*gateway.ChatResult, error)
	CreateEstimate(ctx context.Context, details mapper.NormalizedDetails) (*rules.Estimate, error)
	AnalyzeImage(ctx context.Context, imageB64, sessionID string) (*gateway.ImageAnalysis, error)
	ExportDocument(ctx context.Context, estimateID string) ([]byte, error)
}

// Orchestrator owns the session state. It is not safe for concurrent use by
// multiple goroutines issuing user actions at once; callers serialize
// user-triggered operations, matching the one-outstanding-action model of
// the chat UI. Each completing operation commits its own turns, so a slow
// earlier call that finishes late still lands next to its own reply.
type Orchestrator struct {
	backend       Backend
	logger        *logrus.Logger
	localFallback bool

	phase          Phase
	sessionID      string
	turns          []Turn
	details        *mapper.ProjectDetails
	estimate       *rules.Estimate
	imageTurnCount int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLocalFallback makes SubmitDetails substitute a locally synthesized
// estimate when the backend estimate call fails.
func WithLocalFallback() Option {
	return func(o *Orchestrator) { o.localFallback = true }
}

// WithLogger sets the orchestrator's logger.
func WithLogger(logger *logrus.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// New creates a fresh session seeded with the greeting turn.
func New(backend Backend, opts ...Option) *Orchestrator {
	o := &Orchestrator{backend: backend}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logrus.New()
		o.logger.SetOutput(io.Discard)
	}
	o.reset()
	return o
}

// TurnResult is what a completed user action hands back to the UI.
type TurnResult struct {
	Reply     string          `json:"reply"`
	SessionID string          `json:"sessionId,omitempty"`
	Estimate  *rules.Estimate `json:"estimate,omitempty"`
}

// SendMessage posts one free-text user turn. On success the user and
// assistant turns are appended together; on any failure the state is left
// exactly as it was.
func (o *Orchestrator) SendMessage(ctx context.Context, text string) (*TurnResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &gateway.ValidationError{Field: "message", Reason: "must not be empty"}
	}

	result, err := o.backend.Chat(ctx, text, o.sessionID)
	if err != nil {
		return nil, err
	}

	o.latchSession(result.SessionID)
	o.append(
		Turn{ID: newTurnID(), Role: "user", Text: text},
		Turn{ID: newTurnID(), Role: "assistant", Text: result.Message},
	)

	if result.Estimate != nil {
		o.estimate = result.Estimate
		o.phase = PhaseEstimateReady
	} else if o.phase == PhaseFresh {
		o.phase = PhaseConversing
	}

	return &TurnResult{Reply: result.Message, SessionID: o.sessionID, Estimate: result.Estimate}, nil
}

// SendImage runs an image turn: the image is analyzed first, then the chat
// is advanced with a synthesized prompt referencing the analysis. The
// prompt's wording depends strictly on how many prior user turns carried an
// image. The analysis and the chat reply merge into a single assistant turn.
func (o *Orchestrator) SendImage(ctx context.Context, imageB64 string) (*TurnResult, error) {
	if imageB64 == "" {
		return nil, &gateway.ValidationError{Field: "image", Reason: "must not be empty"}
	}

	analysis, err := o.backend.AnalyzeImage(ctx, imageB64, o.sessionID)
	if err != nil {
		return nil, err
	}
	o.latchSession(analysis.SessionID)

	prompt := firstImagePrompt
	if o.priorImageTurns() > 0 {
		prompt = anotherImagePrompt
	}

	chat, err := o.backend.Chat(ctx, prompt+"\n\nImage analysis: "+analysis.Analysis, o.sessionID)
	if err != nil {
		return nil, err
	}
	o.latchSession(chat.SessionID)

	reply := analysis.Analysis
	if chat.Message != "" {
		reply = analysis.Analysis + "\n\n" + chat.Message
	}

	o.append(
		Turn{ID: newTurnID(), Role: "user", Text: prompt, HasImage: true},
		Turn{ID: newTurnID(), Role: "assistant", Text: reply},
	)
	o.imageTurnCount++

	if chat.Estimate != nil {
		o.estimate = chat.Estimate
		o.phase = PhaseEstimateReady
	} else if o.phase == PhaseFresh {
		o.phase = PhaseConversing
	}

	return &TurnResult{Reply: reply, SessionID: o.sessionID, Estimate: chat.Estimate}, nil
}

// SubmitDetails normalizes the submitted project details and asks the
// backend for an estimate. When the backend call fails and local fallback is
// enabled, the rules engine supplies a synthesized estimate instead; the
// substitution is explicit in the estimate's Source and id prefix.
func (o *Orchestrator) SubmitDetails(ctx context.Context, details mapper.ProjectDetails) (*TurnResult, error) {
	if err := validateDetails(details); err != nil {
		return nil, err
	}

	normalized := mapper.Normalize(details)
	estimate, err := o.backend.CreateEstimate(ctx, normalized)
	if err != nil {
		if !o.localFallback {
			return nil, err
		}
		o.logger.WithError(err).Warn("backend estimate failed, synthesizing locally")
		local := rules.Calculate(details)
		estimate = &local
	}

	reply := estimateMessage(details, *estimate)

	o.details = &details
	o.estimate = estimate
	o.append(Turn{ID: newTurnID(), Role: "assistant", Text: reply})
	if estimate.IsLocal() {
		// Details are in hand but the authoritative estimate is not.
		o.phase = PhaseDetailsCollected
	} else {
		o.phase = PhaseEstimateReady
	}

	return &TurnResult{Reply: reply, SessionID: o.sessionID, Estimate: estimate}, nil
}

// ViewReport opens the detailed report: a scripted user/assistant pair with
// no backend call.
func (o *Orchestrator) ViewReport() (*TurnResult, error) {
	if o.estimate == nil {
		return nil, &gateway.ValidationError{Field: "estimate", Reason: "no estimate to report on"}
	}

	o.append(
		Turn{ID: newTurnID(), Role: "user", Text: viewReportUserLine},
		Turn{ID: newTurnID(), Role: "assistant", Text: viewReportAssistantLine},
	)
	o.phase = PhaseReportOpen

	return &TurnResult{Reply: viewReportAssistantLine, SessionID: o.sessionID, Estimate: o.estimate}, nil
}

// ExportEstimate fetches the PDF for the current estimate. An empty
// estimateID means "whatever estimate is current"; a non-empty id must match
// the current estimate. Locally synthesized estimates are refused: only
// backend-issued estimate ids can be exported.
func (o *Orchestrator) ExportEstimate(ctx context.Context, estimateID string) ([]byte, error) {
	if o.estimate == nil {
		return nil, &gateway.ValidationError{Field: "estimate", Reason: "no estimate to export"}
	}
	if estimateID != "" && estimateID != o.estimate.ID {
		return nil, &gateway.ValidationError{Field: "estimateId", Reason: "does not match the current estimate"}
	}
	if o.estimate.IsLocal() {
		return nil, &gateway.ValidationError{Field: "estimate", Reason: "locally synthesized estimates cannot be exported"}
	}
	return o.backend.ExportDocument(ctx, o.estimate.ID)
}

// Reset discards the session identity, details, estimate, and transcript,
// and replays the greeting.
func (o *Orchestrator) Reset() {
	o.reset()
}

func (o *Orchestrator) reset() {
	o.phase = PhaseFresh
	o.sessionID = ""
	o.details = nil
	o.estimate = nil
	o.imageTurnCount = 0
	o.turns = []Turn{{ID: newTurnID(), Role: "assistant", Text: greeting}}
}

// Phase returns the current conversation phase.
func (o *Orchestrator) Phase() Phase {
	return o.phase
}

// SessionID returns the latched backend session identity, empty before the
// first successful backend turn.
func (o *Orchestrator) SessionID() string {
	return o.sessionID
}

// Estimate returns the current estimate, nil if none has been produced.
func (o *Orchestrator) Estimate() *rules.Estimate {
	return o.estimate
}

// Turns returns a copy of the transcript.
func (o *Orchestrator) Turns() []Turn {
	out := make([]Turn, len(o.turns))
	copy(out, o.turns)
	return out
}

// latchSession records the session identity the backend assigned. First
// non-empty value wins; later empty or duplicate values never overwrite it.
func (o *Orchestrator) latchSession(id string) {
	if o.sessionID == "" && id != "" {
		o.sessionID = id
		o.logger.WithField("session_id", id).Debug("session id latched")
	}
}

func (o *Orchestrator) append(turns ...Turn) {
	o.turns = append(o.turns, turns...)
}

// priorImageTurns counts user turns that carried an image.
func (o *Orchestrator) priorImageTurns() int {
	n := 0
	for _, t := range o.turns {
		if t.Role == "user" && t.HasImage {
			n++
		}
	}
	return n
}

func validateDetails(d mapper.ProjectDetails) error {
	switch {
	case strings.TrimSpace(d.ProjectType) == "":
		return &gateway.ValidationError{Field: "projectType", Reason: "required"}
	case strings.TrimSpace(d.PropertyType) == "":
		return &gateway.ValidationError{Field: "propertyType", Reason: "required"}
	case strings.TrimSpace(d.City) == "":
		return &gateway.ValidationError{Field: "city", Reason: "required"}
	case len(strings.TrimSpace(d.State)) != 2:
		return &gateway.ValidationError{Field: "state", Reason: "must be a 2-letter code"}
	}
	return nil
}

// estimateMessage renders the synthetic assistant turn for a fresh estimate.
func estimateMessage(details mapper.ProjectDetails, est rules.Estimate) string {
	sqft := details.SquareFootage
	if strings.TrimSpace(sqft) == "" {
		sqft = "unspecified"
	}
	return fmt.Sprintf(
		"Based on your %s project for a %s in %s, %s with %s square feet, I estimate the cost to be approximately $%d.\n\n"+
			"The breakdown is roughly:\n"+
			"- Labor: $%d\n"+
			"- Materials: $%d\n"+
			"- Permits: $%d\n"+
			"- Other costs: $%d\n\n"+
			"The project would take approximately %s to complete.\n\n"+
			"Would you like to see a detailed estimate report with cost breakdown and recommendations? I can generate a downloadable PDF for you.",
		details.ProjectType, details.PropertyType, details.City, strings.ToUpper(details.State), sqft,
		est.Breakdown.Total, est.Breakdown.Labor, est.Breakdown.Materials, est.Breakdown.Permits, est.Breakdown.Other,
		est.Timeline,
	)
}

func newTurnID() string {
	return uuid.New().String()
}
