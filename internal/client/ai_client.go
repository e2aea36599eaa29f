package client

import (
	"context"
	"fmt"
	"math"
	"strings"

	"copyfolio/internal/entity"

	oa "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
)

// AIClient defines the interface for the language-model backend of the
// personality lookup and the chat edit interpreter.
type AIClient interface {
	RankHoldings(ctx context.Context, personName string, maxAssets int) ([]entity.WeightedItem, error)
	EditPortfolio(ctx context.Context, instruction string, current []entity.PortfolioItem) (string, []entity.PortfolioItem, error)
}

// aiClientImpl is the implementation of AIClient backed by the OpenAI chat
// completions API.
type aiClientImpl struct {
	cli    oa.Client
	model  string
	logger *zap.Logger
}

// NewAIClient creates a new instance of aiClientImpl.
func NewAIClient(apiKey, model string, logger *zap.Logger) AIClient {
	return &aiClientImpl{
		cli:    oa.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
		logger: logger.Named("AIClient"),
	}
}

const rankSystemPrompt = `You are a crypto market researcher. Given the name of a public figure, list up to %d crypto assets that person is publicly associated with (holdings, endorsements, or strong public advocacy), each with an intensity weight reflecting how strongly the person is associated with the asset.

Respond with JSON only, no prose, in exactly this shape:
{"assets":[{"name":"Bitcoin","symbol":"BTC","weight":9.5}]}

Rules:
- at most %d assets, ordered strongest association first
- weight is a positive number; larger means stronger association
- use the asset's common name and its ticker symbol
- if the person has no known crypto association, return {"assets":[]}`

type rankedAssets struct {
	Assets []struct {
		Name   string  `json:"name"`
		Symbol string  `json:"symbol"`
		Weight float64 `json:"weight"`
	} `json:"assets"`
}

// RankHoldings implements the AIClient interface.
func (c *aiClientImpl) RankHoldings(ctx context.Context, personName string, maxAssets int) ([]entity.WeightedItem, error) {
	resp, err := c.cli.Chat.Completions.New(ctx, oa.ChatCompletionNewParams{
		Model: oa.ChatModel(c.model),
		Messages: []oa.ChatCompletionMessageParamUnion{
			oa.SystemMessage(fmt.Sprintf(rankSystemPrompt, maxAssets, maxAssets)),
			oa.UserMessage(fmt.Sprintf("Public figure: %s", personName)),
		},
		MaxTokens: oa.Int(500),
	})
	if err != nil {
		c.logger.Error("OpenAI rank request failed", zap.String("personName", personName), zap.Error(err))
		return nil, entity.WrapError(entity.CodeUpstreamUnavailable, "OpenAI API error", err)
	}
	if len(resp.Choices) == 0 {
		return nil, entity.NewError(entity.CodeUpstreamDataInvalid, "no response from OpenAI")
	}

	var parsed rankedAssets
	if err := json.Unmarshal([]byte(stripCodeFence(resp.Choices[0].Message.Content)), &parsed); err != nil {
		c.logger.Warn("OpenAI rank reply was not valid JSON",
			zap.String("personName", personName),
			zap.String("content", resp.Choices[0].Message.Content),
			zap.Error(err))
		return nil, entity.WrapError(entity.CodeUpstreamDataInvalid, "unparseable ranking reply", err)
	}

	items := make([]entity.WeightedItem, 0, len(parsed.Assets))
	for _, a := range parsed.Assets {
		if a.Name == "" || a.Weight < 0 {
			return nil, entity.NewError(entity.CodeUpstreamDataInvalid, "ranking reply failed schema validation")
		}
		items = append(items, entity.WeightedItem{Name: a.Name, Symbol: strings.ToUpper(a.Symbol), Weight: a.Weight})
	}
	return items, nil
}

const editSystemPrompt = `You are a portfolio assistant. The user will describe a change to their crypto portfolio in plain language. Apply the change and reply with JSON only, no prose, in exactly this shape:
{"reply":"short confirmation for the user","portfolio":[{"name":"Bitcoin","symbol":"BTC","percentage":50}]}

Rules:
- percentages are integers and must sum to exactly 100 for a non-empty portfolio
- when an asset is added or removed, redistribute the remaining percentages proportionally
- an instruction to clear or sell everything yields "portfolio":[]
- never invent assets the user did not mention unless they ask for suggestions`

type editedPortfolio struct {
	Reply     string `json:"reply"`
	Portfolio []struct {
		Name       string  `json:"name"`
		Symbol     string  `json:"symbol"`
		Percentage float64 `json:"percentage"`
	} `json:"portfolio"`
}

// EditPortfolio implements the AIClient interface. The returned slice is nil
// only on error; an empty non-nil slice is a valid "portfolio cleared" signal.
func (c *aiClientImpl) EditPortfolio(ctx context.Context, instruction string, current []entity.PortfolioItem) (string, []entity.PortfolioItem, error) {
	var sb strings.Builder
	sb.WriteString("Current portfolio:\n")
	if len(current) == 0 {
		sb.WriteString("(empty)\n")
	}
	for _, it := range current {
		fmt.Fprintf(&sb, "- %s (%s): %d%%\n", it.Name, it.Symbol, it.Percentage)
	}
	fmt.Fprintf(&sb, "\nInstruction: %s", instruction)

	resp, err := c.cli.Chat.Completions.New(ctx, oa.ChatCompletionNewParams{
		Model: oa.ChatModel(c.model),
		Messages: []oa.ChatCompletionMessageParamUnion{
			oa.SystemMessage(editSystemPrompt),
			oa.UserMessage(sb.String()),
		},
		MaxTokens: oa.Int(700),
	})
	if err != nil {
		c.logger.Error("OpenAI edit request failed", zap.Error(err))
		return "", nil, entity.WrapError(entity.CodeUpstreamUnavailable, "OpenAI API error", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil, entity.NewError(entity.CodeUpstreamDataInvalid, "no response from OpenAI")
	}

	var parsed editedPortfolio
	if err := json.Unmarshal([]byte(stripCodeFence(resp.Choices[0].Message.Content)), &parsed); err != nil {
		c.logger.Warn("OpenAI edit reply was not valid JSON",
			zap.String("content", resp.Choices[0].Message.Content),
			zap.Error(err))
		return "", nil, entity.WrapError(entity.CodeUpstreamDataInvalid, "unparseable edit reply", err)
	}
	if parsed.Reply == "" {
		return "", nil, entity.NewError(entity.CodeUpstreamDataInvalid, "edit reply missing user-facing text")
	}

	items := make([]entity.PortfolioItem, 0, len(parsed.Portfolio))
	for _, p := range parsed.Portfolio {
		if p.Name == "" || p.Percentage < 0 {
			return "", nil, entity.NewError(entity.CodeUpstreamDataInvalid, "edit reply failed schema validation")
		}
		items = append(items, entity.PortfolioItem{
			Name:       p.Name,
			Symbol:     strings.ToUpper(p.Symbol),
			Percentage: int(math.Floor(p.Percentage + 0.5)),
		})
	}
	return parsed.Reply, items, nil
}

// stripCodeFence removes a markdown code fence that chat models sometimes wrap
// around JSON replies despite instructions.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
