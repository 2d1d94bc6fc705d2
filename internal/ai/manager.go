package ai

import (
	"context"
	"fmt"
	"time"
)

type ManagerConfig struct {
	Model       string
	Temperature *float32
	MaxTokens   int
	Timeout     int
}

// Manager runs chat completions against one provider with the configured
// model parameters and deadline.
type Manager struct {
	chat IChatProvider
	cfg  ManagerConfig
}

func NewManager(chat IChatProvider, cfg ManagerConfig) *Manager {
	return &Manager{chat: chat, cfg: cfg}
}

// Chat answers question given the retrieved context. Every failure is
// returned as a *GenerationError.
func (m *Manager) Chat(ctx context.Context, systemPrompt, contextText, question string) (*ChatResponse, error) {
	if m.chat == nil {
		return nil, &GenerationError{Err: fmt.Errorf("chat provider not configured")}
	}
	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(m.cfg.Timeout)*time.Second)
		defer cancel()
	}
	req := &ChatRequest{
		Model: m.cfg.Model,
		Messages: []Message{
			{Role: RoleSystem, Content: systemPrompt},
			{Role: RoleUser, Content: BuildUserMessage(contextText, question)},
		},
		Temperature: m.cfg.Temperature,
		MaxTokens:   m.cfg.MaxTokens,
	}
	resp, err := m.chat.Chat(ctx, req)
	if err != nil {
		return nil, &GenerationError{Err: err}
	}
	if resp.Content == "" {
		return nil, &GenerationError{Err: fmt.Errorf("empty ai response")}
	}
	return resp, nil
}

func (m *Manager) ProviderName() string {
	if m.chat == nil {
		return ""
	}
	return m.chat.Name()
}

func BuildUserMessage(contextText, question string) string {
	return fmt.Sprintf("Context:\n%s\n\nUser Question: %s", contextText, question)
}
