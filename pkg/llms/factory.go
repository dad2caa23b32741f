package llms

import (
	"github.com/XiaoConstantine/promptimal/pkg/core"
	errs "github.com/XiaoConstantine/promptimal/pkg/errors"
)

// ProviderFactory builds a gateway for one provider.
type ProviderFactory func(apiKey string, model core.ModelID, endpoint *core.EndpointConfig) (core.LLM, error)

var providerFactories = map[string]ProviderFactory{
	"anthropic": func(apiKey string, model core.ModelID, endpoint *core.EndpointConfig) (core.LLM, error) {
		return NewAnthropicLLM(apiKey, model, endpoint)
	},
}

// RegisterProvider makes a custom provider available to NewLLM. Intended
// for embedding applications that bring their own gateway.
func RegisterProvider(name string, factory ProviderFactory) {
	providerFactories[name] = factory
}

// NewLLM creates a gateway for the named provider.
func NewLLM(provider, apiKey string, model core.ModelID, endpoint *core.EndpointConfig) (core.LLM, error) {
	factory, ok := providerFactories[provider]
	if !ok {
		return nil, errs.WithFields(
			errs.New(errs.InvalidInput, "unknown LLM provider"),
			errs.Fields{"provider": provider})
	}
	return factory(apiKey, model, endpoint)
}
