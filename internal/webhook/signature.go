package webhook

import (
	"strings"

	"github.com/google/go-github/v57/github"
	"github.com/user/gitcord/internal/storage"
)

const signaturePrefix = "sha256="

// matchSignature returns the first candidate whose secret (or the global
// secret when it has none) produced signature over body.
func matchSignature(candidates []storage.RepositoryWithServer, globalSecret, signature string, body []byte) (*storage.RepositoryWithServer, bool) {
	if !strings.HasPrefix(signature, signaturePrefix) {
		return nil, false
	}
	for i := range candidates {
		secret := candidates[i].WebhookSecret
		if secret == "" {
			secret = globalSecret
		}
		if secret == "" {
			continue
		}
		if github.ValidateSignature(signature, body, []byte(secret)) == nil {
			return &candidates[i], true
		}
	}
	return nil, false
}
