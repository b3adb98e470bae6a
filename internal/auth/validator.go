package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/zgsm-ai/chat-proxy/internal/config"
	"github.com/zgsm-ai/chat-proxy/internal/logger"
	"github.com/zgsm-ai/chat-proxy/internal/store"
	"github.com/zgsm-ai/chat-proxy/internal/types"
	"go.uber.org/zap"
)

const staticKeyName = "static"

var (
	ErrMissingCredentials = errors.New("API key is required")
	ErrInvalidCredentials = errors.New("Invalid API key")
)

// Principal is an authenticated caller
type Principal struct {
	Key      string
	KeyName  string
	UserName string
	// Static keys come from config and have no usage counters
	Static bool
}

// Validator checks credentials against config keys, then the key store
type Validator struct {
	mu         sync.RWMutex
	staticKeys map[string]struct{}
	nameClaim  string
	keys       store.Store
}

func NewValidator(cfg config.AuthConfig, keys store.Store) *Validator {
	v := &Validator{keys: keys}
	v.Update(cfg)
	return v
}

// Update swaps the static keys after a config reload
func (v *Validator) Update(cfg config.AuthConfig) {
	static := make(map[string]struct{}, len(cfg.StaticKeys))
	for _, k := range cfg.StaticKeys {
		if k != "" {
			static[k] = struct{}{}
		}
	}
	v.mu.Lock()
	v.staticKeys = static
	v.nameClaim = cfg.NameClaim
	v.mu.Unlock()
}

// CredentialFromHeaders returns the bearer token, or the x-api-key header
func CredentialFromHeaders(h http.Header) string {
	if authz := h.Get(types.HeaderAuthorization); authz != "" {
		if token, ok := strings.CutPrefix(authz, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(h.Get(types.HeaderAPIKey))
}

// Validate resolves token to a principal
func (v *Validator) Validate(ctx context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, ErrMissingCredentials
	}

	v.mu.RLock()
	_, static := v.staticKeys[token]
	nameClaim := v.nameClaim
	v.mu.RUnlock()

	if static {
		return &Principal{
			Key:      token,
			KeyName:  staticKeyName,
			UserName: ExtractUserNameFromToken(token, nameClaim),
			Static:   true,
		}, nil
	}
	if v.keys == nil {
		return nil, ErrInvalidCredentials
	}

	key, err := v.keys.LookupAPIKey(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("validate api key: %w", err)
	}
	if !key.Enabled {
		return nil, ErrInvalidCredentials
	}
	return &Principal{
		Key:      token,
		KeyName:  key.Name,
		UserName: ExtractUserNameFromToken(token, nameClaim),
	}, nil
}

// RecordUsage counts one accepted request for the principal
func (v *Validator) RecordUsage(ctx context.Context, p *Principal) {
	if p == nil || p.Static || v.keys == nil {
		return
	}
	if err := v.keys.RecordUsage(ctx, p.Key); err != nil {
		logger.WarnC(ctx, "failed to record api key usage",
			zap.String("keyName", p.KeyName),
			zap.Error(err),
		)
	}
}
