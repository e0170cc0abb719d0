package proposal

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/constants"
	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/domain"
	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/models"
	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/prompts"
	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/circuit"
	errs "github.com/taiyoimmt-ops/tiktok-growth-director/pkg/errors"
	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/logging"
	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/metrics"
)

// ChatClient is the subset of *openai.Client used here.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Config tunes the proposal calls.
type Config struct {
	Model             string
	Temperature       float32 // first proposal
	RefillTemperature float32 // replacements, hotter to avoid repeats
	Timeout           time.Duration
	SpotCount         int
}

func DefaultConfig() Config {
	return Config{
		Model:             openai.GPT4o,
		Temperature:       0.7,
		RefillTemperature: 0.9,
		Timeout:           constants.ProposalOperationTimeout,
		SpotCount:         constants.TargetSpots,
	}
}

// CostTracker tracks token usage and an estimated spend.
type CostTracker struct {
	mu               sync.RWMutex
	promptTokens     int
	completionTokens int
	requests         int
	estimatedCostUSD float64
}

// AddUsage records one completion. Prices are gpt-4o list prices per token.
func (c *CostTracker) AddUsage(promptTokens, completionTokens int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.promptTokens += promptTokens
	c.completionTokens += completionTokens
	c.requests++
	c.estimatedCostUSD += float64(promptTokens)*2.5/1e6 + float64(completionTokens)*10.0/1e6
}

func (c *CostTracker) Stats() (tokens, requests int, costUSD float64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.promptTokens + c.completionTokens, c.requests, c.estimatedCostUSD
}

// OpenAIProposer asks a chat model for areas and replacement venues.
type OpenAIProposer struct {
	client  ChatClient
	pm      *prompts.Manager
	cfg     Config
	breaker *circuit.Breaker
	costs   *CostTracker
	log     *logging.ComponentLogger

	mCalls *metrics.Counter
}

var _ domain.Proposer = (*OpenAIProposer)(nil)

func NewOpenAIProposer(apiKey string, pm *prompts.Manager, cfg Config, logger *logging.Logger) *OpenAIProposer {
	return NewWithClient(openai.NewClient(apiKey), pm, cfg, logger)
}

// NewWithClient builds a proposer over any chat client.
func NewWithClient(client ChatClient, pm *prompts.Manager, cfg Config, logger *logging.Logger) *OpenAIProposer {
	if logger == nil {
		logger = logging.Nop()
	}
	def := DefaultConfig()
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = def.Temperature
	}
	if cfg.RefillTemperature <= 0 {
		cfg.RefillTemperature = def.RefillTemperature
	}
	if cfg.SpotCount <= 0 {
		cfg.SpotCount = def.SpotCount
	}
	return &OpenAIProposer{
		client: client,
		pm:     pm,
		cfg:    cfg,
		breaker: circuit.New(circuit.Config{
			Name:              "openai",
			OperationTimeout:  cfg.Timeout,
			OpenFor:           constants.ProposalOpenFor,
			MaxConsecFailures: constants.CircuitConsecFail,
			FailureRate:       constants.CircuitFailureRate,
		}, logger),
		costs:  &CostTracker{},
		log:    logger.WithComponent("proposal"),
		mCalls: metrics.Default.Counter("proposal_requests_total", "Chat completions requested"),
	}
}

// Costs exposes accumulated usage.
func (p *OpenAIProposer) Costs() *CostTracker { return p.costs }

// Propose asks for one area with SpotCount candidate spots.
func (p *OpenAIProposer) Propose(ctx context.Context, req domain.ProposalRequest) (models.AreaRecord, error) {
	system, err := p.pm.Render(prompts.ProposalSystem, nil)
	if err != nil {
		return models.AreaRecord{}, err
	}
	user, err := p.pm.Render(prompts.ProposalUser, map[string]any{
		"Location": req.Location,
		"Theme":    req.Theme,
		"Custom":   req.Custom,
		"Count":    p.cfg.SpotCount,
	})
	if err != nil {
		return models.AreaRecord{}, err
	}

	content, err := p.complete(ctx, system, user, p.cfg.Temperature, true)
	if err != nil {
		return models.AreaRecord{}, err
	}

	var area models.AreaRecord
	if err := json.Unmarshal([]byte(StripFences(content)), &area); err != nil {
		return models.AreaRecord{}, errs.NewExternal("proposal.Propose", "openai", "response is not an area object: "+snippet(content), err)
	}
	area.Spots = cleanCandidates(area.Spots, area.Area)
	if strings.TrimSpace(area.Area) == "" || len(area.Spots) == 0 {
		return models.AreaRecord{}, errs.NewExternal("proposal.Propose", "openai", "area or spots missing", nil)
	}
	if area.Folder == "" {
		area.Folder = "000_area"
	}
	p.log.Info("area proposed", logging.String("area", area.Area), logging.String("title", area.Title), logging.Int("spots", len(area.Spots)))
	return area, nil
}

// Refill asks for Count replacement candidates.
func (p *OpenAIProposer) Refill(ctx context.Context, req domain.RefillRequest) ([]models.Candidate, error) {
	if req.Count <= 0 {
		return nil, errs.NewValidation("proposal.Refill", "count must be positive", nil)
	}
	user, err := p.pm.Render(prompts.RefillUser, req)
	if err != nil {
		return nil, err
	}
	content, err := p.complete(ctx, "", user, p.cfg.RefillTemperature, false)
	if err != nil {
		return nil, err
	}

	spots, err := decodeCandidates(StripFences(content))
	if err != nil {
		return nil, errs.NewExternal("proposal.Refill", "openai", "response is not a spot list: "+snippet(content), err)
	}
	spots = cleanCandidates(spots, req.Area)
	if len(spots) > req.Count {
		spots = spots[:req.Count]
	}
	p.log.Info("replacements proposed", logging.String("area", req.Area), logging.Int("asked", req.Count), logging.Int("got", len(spots)))
	return spots, nil
}

func (p *OpenAIProposer) complete(ctx context.Context, system, user string, temperature float32, jsonObject bool) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, 2)
	if system != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: user})

	req := openai.ChatCompletionRequest{
		Model:       p.cfg.Model,
		Messages:    msgs,
		Temperature: temperature,
	}
	if jsonObject {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	var resp openai.ChatCompletionResponse
	p.mCalls.Inc(1)
	err := p.breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		resp, err = p.client.CreateChatCompletion(ctx, req)
		return err
	})
	if err != nil {
		return "", errs.NewExternal("proposal.complete", "openai", "chat completion failed", err)
	}
	p.costs.AddUsage(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	if len(resp.Choices) == 0 {
		return "", errs.NewExternal("proposal.complete", "openai", "no choices returned", nil)
	}
	return resp.Choices[0].Message.Content, nil
}

var reFence = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*\\n?(.*?)\\n?```$")

// StripFences removes a surrounding markdown code fence, if any.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if m := reFence.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return s
}

// decodeCandidates accepts a bare array or an object wrapping one.
func decodeCandidates(s string) ([]models.Candidate, error) {
	var list []models.Candidate
	if err := json.Unmarshal([]byte(s), &list); err == nil {
		return list, nil
	}
	var wrapped struct {
		Spots []models.Candidate `json:"spots"`
	}
	if err := json.Unmarshal([]byte(s), &wrapped); err != nil {
		return nil, err
	}
	if wrapped.Spots == nil {
		return nil, fmt.Errorf("no spots field")
	}
	return wrapped.Spots, nil
}

// cleanCandidates drops nameless entries and fills a missing search query.
func cleanCandidates(in []models.Candidate, area string) []models.Candidate {
	out := in[:0]
	for _, c := range in {
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			continue
		}
		if strings.TrimSpace(c.Search) == "" {
			c.Search = strings.TrimSpace(c.Name + " " + area)
		}
		out = append(out, c)
	}
	return out
}

func snippet(s string) string {
	r := []rune(s)
	if len(r) > 100 {
		return string(r[:100])
	}
	return s
}
