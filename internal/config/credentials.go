package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Minimum lengths below which a cookie is assumed to be truncated.
const (
	MinSessionIDLength   = 30
	MinCFClearanceLength = 50
)

var ErrMissingCredentials = errors.New("required environment variables not set or truncated")

// CredentialError lists the environment variables that failed preflight.
type CredentialError struct {
	Missing []string
}

func (e *CredentialError) Error() string {
	return "Required environment variables not set or truncated: " + strings.Join(e.Missing, ", ")
}

func (e *CredentialError) Is(target error) bool {
	return target == ErrMissingCredentials
}

// CheckCredentials runs the preflight that must pass before any network call.
func (t TradeEnvConfig) CheckCredentials() error {
	var missing []string
	if len(t.SessionID) < MinSessionIDLength {
		missing = append(missing, EnvSessionID)
	}
	if len(t.CFClearance) < MinCFClearanceLength {
		missing = append(missing, EnvCFClearance)
	}
	if len(missing) > 0 {
		return &CredentialError{Missing: missing}
	}
	return nil
}

// LogCredentials reports masked cookie values and their lengths.
func (t TradeEnvConfig) LogCredentials(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("trade_credentials",
		"session_id", Mask(t.SessionID), "session_id_len", len(t.SessionID),
		"cf_clearance", Mask(t.CFClearance), "cf_clearance_len", len(t.CFClearance),
	)
}

// Mask keeps the first and last four characters of a secret.
func Mask(secret string) string {
	switch n := len(secret); {
	case n == 0:
		return "<unset>"
	case n <= 8:
		return strings.Repeat("*", n)
	default:
		return secret[:4] + strings.Repeat("*", n-8) + secret[n-4:]
	}
}

// ConfigErrorMessage renders the run message for a failed preflight.
func ConfigErrorMessage(err error) string {
	return fmt.Sprintf("Error: %v", err)
}
