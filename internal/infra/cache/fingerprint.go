package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/DqkrLord0Xerod/Multistage-Intelligence-Looping-System/internal/core/domain"
)

// fingerprintInput pins the exact set of fields that make two candidate
// generations interchangeable. Round index and message timestamps stay
// out: the same prompt and context re-asked later may reuse the payload.
type fingerprintInput struct {
	Prompt  string            `json:"prompt"`
	Context []contextSnapshot `json:"context"`
	Params  domain.GenParams  `json:"params"`
	Variant int               `json:"variant"`
}

type contextSnapshot struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Fingerprint returns the stable cache key for one candidate generation:
// a hash of prompt, trimmed context, generation parameters, and the
// candidate variant.
func Fingerprint(input domain.RoundInput, variant int) string {
	snap := make([]contextSnapshot, len(input.Context))
	for i, m := range input.Context {
		snap[i] = contextSnapshot{Role: m.Role, Content: m.Content}
	}

	payload, err := json.Marshal(fingerprintInput{
		Prompt:  input.Prompt,
		Context: snap,
		Params:  input.Params,
		Variant: variant,
	})
	if err != nil {
		// Marshalling plain strings and numbers cannot fail; guard anyway.
		payload = []byte(input.Prompt)
	}

	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
