// Package tokens estimates token counts for generated text using
// tiktoken encodings. The Llama-family models served by Groq use their
// own tokenizers, so these counts are approximations meant for display
// and metrics, not billing.
package tokens

import (
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// Estimator counts tokens with the cl100k_base encoding. The codec is
// loaded lazily and cached for the life of the estimator.
type Estimator struct {
	once  sync.Once
	codec tokenizer.Codec
	err   error
}

// NewEstimator creates a token estimator.
func NewEstimator() *Estimator {
	return &Estimator{}
}

// Count returns the approximate token count of text. When the encoding
// cannot be loaded it falls back to a characters/4 heuristic rather
// than failing, since callers only use the count for step details.
func (e *Estimator) Count(text string) int {
	e.once.Do(func() {
		e.codec, e.err = tokenizer.Get(tokenizer.Cl100kBase)
	})
	if e.err != nil {
		return len(text) / 4
	}

	ids, _, err := e.codec.Encode(text)
	if err != nil {
		return len(text) / 4
	}
	return len(ids)
}
