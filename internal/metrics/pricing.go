package metrics

import "strings"

// ModelPrice is the USD cost per one million tokens.
type ModelPrice struct {
	InputPerMillion       float64 `mapstructure:"input" yaml:"input" json:"input"`
	OutputPerMillion      float64 `mapstructure:"output" yaml:"output" json:"output"`
	CachedInputPerMillion float64 `mapstructure:"cached_input" yaml:"cached_input" json:"cached_input"`
}

// Pricing maps model names to prices.
type Pricing map[string]ModelPrice

// Lookup finds the price for model. A vendor prefix ("google/gemini-2.5-flash")
// falls back to the bare model name.
func (p Pricing) Lookup(model string) (ModelPrice, bool) {
	if price, ok := p[model]; ok {
		return price, true
	}
	if i := strings.LastIndex(model, "/"); i >= 0 {
		price, ok := p[model[i+1:]]
		return price, ok
	}
	return ModelPrice{}, false
}

// Cost prices usage for model. Cached input tokens are billed at the cached
// rate when one is set, otherwise at the input rate.
func (p Pricing) Cost(model string, u Usage) (float64, bool) {
	price, ok := p.Lookup(model)
	if !ok {
		return 0, false
	}

	input := float64(u.InputTokens)
	cached := 0.0
	if price.CachedInputPerMillion > 0 && u.CachedInputTokens > 0 {
		cached = float64(u.CachedInputTokens)
		input -= cached
		if input < 0 {
			input = 0
		}
	}

	cost := input*price.InputPerMillion +
		cached*price.CachedInputPerMillion +
		float64(u.OutputTokens)*price.OutputPerMillion
	return cost / 1e6, true
}
