package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"copyfolio/internal/client"
	"copyfolio/internal/entity"
	"copyfolio/internal/normalize"
)

// rescaleTolerance is how far an AI-edited allocation may drift from 100
// before it gets re-normalized.
const rescaleTolerance = 0.5

const chatFailureReply = "Sorry, I couldn't apply that change to your portfolio. Your allocation is unchanged - please try rephrasing."

// ChatResult is the outcome of a chat edit.
type ChatResult struct {
	Reply     string                 `json:"reply"`
	Portfolio []entity.PortfolioItem `json:"portfolio"`
}

// ChatService forwards natural-language portfolio edits to the AI and
// validates the structured reply. A malformed reply never corrupts state: the
// caller gets the prior portfolio back with a generic failure message.
type ChatService interface {
	Edit(ctx context.Context, message string, current []entity.PortfolioItem) (*ChatResult, error)
}

// chatServiceImpl implements the ChatService interface.
type chatServiceImpl struct {
	ai     client.AIClient
	logger *zap.Logger
}

// NewChatService creates a new instance of chatServiceImpl.
func NewChatService(ai client.AIClient, logger *zap.Logger) ChatService {
	return &chatServiceImpl{ai: ai, logger: logger.Named("ChatService")}
}

func (s *chatServiceImpl) Edit(ctx context.Context, message string, current []entity.PortfolioItem) (*ChatResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, entity.NewError(entity.CodeValidation, "message is required")
	}

	reply, edited, err := s.ai.EditPortfolio(ctx, message, current)
	if err != nil {
		if entity.HasCode(err, entity.CodeUpstreamDataInvalid) {
			s.logger.Warn("AI edit reply failed validation, keeping prior portfolio", zap.Error(err))
			return &ChatResult{Reply: chatFailureReply, Portfolio: current}, nil
		}
		return nil, err
	}

	// An empty portfolio is a valid "cleared" signal.
	if len(edited) == 0 {
		return &ChatResult{Reply: reply, Portfolio: []entity.PortfolioItem{}}, nil
	}

	rescaled, err := normalize.Rescale(edited, rescaleTolerance)
	if err != nil {
		s.logger.Warn("AI edit reply failed re-normalization, keeping prior portfolio", zap.Error(err))
		return &ChatResult{Reply: chatFailureReply, Portfolio: current}, nil
	}
	return &ChatResult{Reply: reply, Portfolio: rescaled}, nil
}
