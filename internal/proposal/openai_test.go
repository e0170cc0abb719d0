package proposal

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"

	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/domain"
	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/prompts"
	errs "github.com/taiyoimmt-ops/tiktok-growth-director/pkg/errors"
	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/logging"
)

// mockChat returns queued replies and records requests.
type mockChat struct {
	replies  []string
	err      error
	requests []openai.ChatCompletionRequest
}

func (m *mockChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return openai.ChatCompletionResponse{}, m.err
	}
	content := m.replies[0]
	m.replies = m.replies[1:]
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: content}}},
		Usage:   openai.Usage{PromptTokens: 1000, CompletionTokens: 500, TotalTokens: 1500},
	}, nil
}

func newProposer(t *testing.T, chat ChatClient) *OpenAIProposer {
	t.Helper()
	pm, err := prompts.NewManager("")
	if err != nil {
		t.Fatal(err)
	}
	return NewWithClient(chat, pm, Config{}, logging.Nop())
}

const areaJSON = "```json\n" + `{
  "area": "吉祥寺",
  "title": "吉祥寺の圧倒的穴場5選",
  "folder": "000_kichijoji_anaba",
  "landmark": "井の頭恩賜公園",
  "landmark_search": "井の頭公園 池 ボート",
  "category_focus": "カフェ",
  "spots": [
    {"name": "珈琲 蔵", "search": "珈琲蔵 吉祥寺 コーヒー", "category": "喫茶", "rating": 4.3, "reviews": 300, "price": "〜¥1,000", "merits": ["a","b","c"], "demerit": "d", "secret": "s"},
    {"name": "  ", "search": "x"},
    {"name": "SATOU", "category": "精肉"}
  ]
}` + "\n```"

func TestPropose(t *testing.T) {
	chat := &mockChat{replies: []string{areaJSON}}
	p := newProposer(t, chat)

	area, err := p.Propose(context.Background(), domain.ProposalRequest{Location: "吉祥寺", Theme: "カフェ"})
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if area.Area != "吉祥寺" || area.Folder != "000_kichijoji_anaba" || area.LandmarkSearch == "" || area.CategoryFocus != "カフェ" {
		t.Errorf("area = %+v", area)
	}
	if len(area.Spots) != 2 {
		t.Fatalf("nameless spot should be dropped, got %d spots", len(area.Spots))
	}
	if area.Spots[1].Search != "SATOU 吉祥寺" {
		t.Errorf("missing search query not filled: %q", area.Spots[1].Search)
	}

	req := chat.requests[0]
	if req.Temperature != 0.7 || req.Model != openai.GPT4o {
		t.Errorf("request = model %q temp %v", req.Model, req.Temperature)
	}
	if req.ResponseFormat == nil || len(req.Messages) != 2 || !strings.Contains(req.Messages[1].Content, "地名: 吉祥寺") {
		t.Errorf("unexpected request shape: %+v", req)
	}
	if tokens, calls, cost := p.Costs().Stats(); tokens != 1500 || calls != 1 || cost <= 0 {
		t.Errorf("costs = %d tokens, %d calls, $%f", tokens, calls, cost)
	}
}

func TestRefill(t *testing.T) {
	chat := &mockChat{replies: []string{
		`[{"name":"A"},{"name":"B"},{"name":"C"}]`,
		"```\n{\"spots\": [{\"name\": \"D\"}]}\n```",
	}}
	p := newProposer(t, chat)
	req := domain.RefillRequest{Area: "吉祥寺", Theme: "カフェ", ExclusionNote: "「X（not found）」は不合格。", Count: 2}

	got, err := p.Refill(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Name != "A" || got[1].Name != "B" {
		t.Errorf("refill should be capped at the requested count: %+v", got)
	}
	sent := chat.requests[0]
	if sent.Temperature != 0.9 || sent.ResponseFormat != nil {
		t.Errorf("refill request temp %v format %v", sent.Temperature, sent.ResponseFormat)
	}
	if !strings.Contains(sent.Messages[0].Content, "「X（not found）」は不合格。") {
		t.Error("exclusion note missing from prompt")
	}

	got, err = p.Refill(context.Background(), req)
	if err != nil || len(got) != 1 || got[0].Name != "D" {
		t.Errorf("wrapped reply: %+v, %v", got, err)
	}
}

func TestProposerErrors(t *testing.T) {
	p := newProposer(t, &mockChat{err: errors.New("429 rate limited")})
	_, err := p.Propose(context.Background(), domain.ProposalRequest{})
	if !errs.Is(err, errs.ErrExternal) {
		t.Errorf("err = %v, want external", err)
	}

	p = newProposer(t, &mockChat{replies: []string{"申し訳ありません"}})
	if _, err := p.Refill(context.Background(), domain.RefillRequest{Area: "x", Count: 1}); !errs.Is(err, errs.ErrExternal) {
		t.Errorf("garbage reply err = %v", err)
	}

	if _, err := p.Refill(context.Background(), domain.RefillRequest{Count: 0}); !errs.Is(err, errs.ErrValidation) {
		t.Errorf("zero count err = %v", err)
	}
}

func TestStripFences(t *testing.T) {
	tests := map[string]string{
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```\n[1]\n```":           "[1]",
		"  {\"a\":1}  ":           `{"a":1}`,
		"```json{\"a\":1}```":     `{"a":1}`,
	}
	for in, want := range tests {
		if got := StripFences(in); got != want {
			t.Errorf("StripFences(%q) = %q, want %q", in, got, want)
		}
	}
}
