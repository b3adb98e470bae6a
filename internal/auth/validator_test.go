package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zgsm-ai/chat-proxy/internal/config"
	"github.com/zgsm-ai/chat-proxy/internal/store"
	"github.com/zgsm-ai/chat-proxy/internal/store/mocks"
)

func TestCredentialFromHeaders(t *testing.T) {
	h := http.Header{}
	assert.Equal(t, "", CredentialFromHeaders(h))

	h.Set("x-api-key", "k2")
	assert.Equal(t, "k2", CredentialFromHeaders(h))

	h.Set("Authorization", "Bearer k1")
	assert.Equal(t, "k1", CredentialFromHeaders(h))

	h.Set("Authorization", "Basic abc")
	assert.Equal(t, "k2", CredentialFromHeaders(h))
}

func TestValidator_StaticKeySkipsStore(t *testing.T) {
	ctrl := gomock.NewController(t)
	keys := mocks.NewMockStore(ctrl)

	v := NewValidator(config.AuthConfig{StaticKeys: []string{"static-1"}}, keys)
	p, err := v.Validate(context.Background(), "static-1")
	require.NoError(t, err)
	assert.True(t, p.Static)
	assert.Equal(t, "static", p.KeyName)

	// no RecordUsage call is expected for static keys
	v.RecordUsage(context.Background(), p)
}

func TestValidator_StoreKeys(t *testing.T) {
	ctrl := gomock.NewController(t)
	keys := mocks.NewMockStore(ctrl)
	ctx := context.Background()

	keys.EXPECT().LookupAPIKey(gomock.Any(), "good").Return(&store.APIKey{Key: "good", Name: "app", Enabled: true}, nil)
	keys.EXPECT().LookupAPIKey(gomock.Any(), "off").Return(&store.APIKey{Key: "off", Enabled: false}, nil)
	keys.EXPECT().LookupAPIKey(gomock.Any(), "missing").Return(nil, store.ErrNotFound)
	keys.EXPECT().LookupAPIKey(gomock.Any(), "broken").Return(nil, errors.New("disk full"))
	keys.EXPECT().RecordUsage(gomock.Any(), "good").Return(nil)

	v := NewValidator(config.AuthConfig{}, keys)

	p, err := v.Validate(ctx, "good")
	require.NoError(t, err)
	assert.Equal(t, "app", p.KeyName)
	v.RecordUsage(ctx, p)

	_, err = v.Validate(ctx, "off")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = v.Validate(ctx, "missing")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = v.Validate(ctx, "broken")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
	_, err = v.Validate(ctx, "")
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestValidator_UpdateReplacesStaticKeys(t *testing.T) {
	v := NewValidator(config.AuthConfig{StaticKeys: []string{"old"}}, nil)
	v.Update(config.AuthConfig{StaticKeys: []string{"new"}})

	_, err := v.Validate(context.Background(), "old")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = v.Validate(context.Background(), "new")
	assert.NoError(t, err)
}
