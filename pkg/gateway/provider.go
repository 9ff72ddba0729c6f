package gateway

import "fmt"

// NewGenerator creates a generator for the named provider.
func NewGenerator(provider, apiKey string) (Generator, error) {
	switch provider {
	case "anthropic":
		return NewAnthropicGenerator(apiKey), nil
	case "openai":
		return NewOpenAIGenerator(apiKey), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}
