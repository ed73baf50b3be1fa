package middleware

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/foxford/event/internal/domain"
)

// TrustedAccounts holds the bcrypt-hashed shared secrets of the
// service accounts allowed to bypass the ready-status gate on
// event.create, spec.md §4.B ("unless the caller is a trusted service
// account"). Keyed by "account_label.audience", the same pair every
// AgentID carries.
type TrustedAccounts struct {
	hashes map[string]string
}

// ParseTrustedAccounts decodes the TRUSTED_SERVICE_ACCOUNTS format:
// comma-separated "account_label.audience:bcrypt_hash" entries. An
// empty string yields an empty, always-false verifier.
func ParseTrustedAccounts(raw string) (*TrustedAccounts, error) {
	t := &TrustedAccounts{hashes: map[string]string{}}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return t, nil
	}
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		idx := strings.LastIndex(entry, ":")
		if idx <= 0 || idx == len(entry)-1 {
			return nil, fmt.Errorf("middleware: malformed trusted account entry %q, want account_label.audience:bcrypt_hash", entry)
		}
		account, hash := entry[:idx], entry[idx+1:]
		if !strings.Contains(account, ".") {
			return nil, fmt.Errorf("middleware: trusted account %q must be account_label.audience", account)
		}
		t.hashes[account] = hash
	}
	return t, nil
}

func accountKey(agent domain.AgentID) string {
	return agent.Account.Label + "." + agent.Account.Audience
}

// Verify reports whether secret matches the configured hash for
// agent's account. A missing account or empty secret is never trusted.
func (t *TrustedAccounts) Verify(agent domain.AgentID, secret string) bool {
	if t == nil || secret == "" {
		return false
	}
	hash, ok := t.hashes[accountKey(agent)]
	if !ok {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}
