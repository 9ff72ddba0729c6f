package gateway

import (
	"strings"

	"github.com/fennelworks/convo/pkg/chat"
)

// DefaultModel is used when the caller does not pin a model.
const DefaultModel = "claude-3-5-sonnet-20241022"

const baseInstruction = `You are an empathetic, encouraging, and supportive writing assistant for communications and marketing teams. Your mission is to help them create high-quality, on-brand content.

Core Principles:
1. Be empathetic, encouraging, and supportive in tone
2. Prioritize clarity, trustworthiness, and empowerment in all content
3. Use person-first language and avoid stigmatizing terms
4. Focus on strengths rather than deficits
5. Provide actionable information
6. Be culturally responsive and inclusive
7. Maintain professional boundaries while being warm and approachable`

// Request is a fully assembled conversation turn ready for a provider.
type Request struct {
	// Messages is the conversation so far, oldest first, ending with
	// the user turn being answered.
	Messages []chat.Message

	System      string
	Temperature float64
	Model       string
	MaxTokens   int
}

// BuildRequest assembles a provider request from the conversation
// history and the user's current mode and voice selections. The system
// instruction layers the mode guidance and the voice guide on top of
// the base instruction; the temperature comes from the mode.
func BuildRequest(messages []chat.Message, modeID, voiceGuide, model string) (Request, error) {
	mode, ok := chat.LookupMode(modeID)
	if !ok {
		return Request{}, chat.ErrUnknownMode
	}

	var sys strings.Builder
	sys.WriteString(baseInstruction)
	if mode.Instruction != "" {
		sys.WriteString("\n\nCurrent Mode: ")
		sys.WriteString(mode.Instruction)
	}
	if voiceGuide != "" {
		sys.WriteString("\n\nBrand Voice Guidelines:\n")
		sys.WriteString(voiceGuide)
	}

	if model == "" {
		model = DefaultModel
	}

	return Request{
		Messages:    messages,
		System:      sys.String(),
		Temperature: mode.Temperature,
		Model:       model,
		MaxTokens:   4096,
	}, nil
}
