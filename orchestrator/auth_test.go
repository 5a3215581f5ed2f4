// Copyright 2025 CareFlow
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signOperatorToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func authProbe() (http.Handler, *OperatorClaims) {
	var seen OperatorClaims
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if claims, ok := OperatorFromContext(r.Context()); ok {
			seen = claims
		}
		w.WriteHeader(http.StatusOK)
	})
	return handler, &seen
}

func TestOperatorAuthValidToken(t *testing.T) {
	auth := NewOperatorAuth("test-secret")
	probe, seen := authProbe()

	token := signOperatorToken(t, "test-secret", jwt.MapClaims{
		"operator_id": "op-7",
		"name":        "Sam",
		"role":        "supervisor",
		"exp":         time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/operator/input", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	auth.Middleware(probe).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "op-7", seen.OperatorID)
	assert.Equal(t, "Sam", seen.Name)
	assert.Equal(t, "supervisor", seen.Role)
}

func TestOperatorAuthQueryParamFallback(t *testing.T) {
	auth := NewOperatorAuth("test-secret")
	probe, seen := authProbe()

	token := signOperatorToken(t, "test-secret", jwt.MapClaims{"operator_id": "op-9"})

	req := httptest.NewRequest(http.MethodGet, "/ws/operator/conv-1?token="+token, nil)
	rec := httptest.NewRecorder()
	auth.Middleware(probe).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "op-9", seen.OperatorID)
}

func TestOperatorAuthRejections(t *testing.T) {
	auth := NewOperatorAuth("test-secret")
	probe, _ := authProbe()

	expired := signOperatorToken(t, "test-secret", jwt.MapClaims{
		"operator_id": "op-7",
		"exp":         time.Now().Add(-time.Hour).Unix(),
	})
	wrongKey := signOperatorToken(t, "other-secret", jwt.MapClaims{"operator_id": "op-7"})

	tests := []struct {
		name  string
		token string
	}{
		{"missing token", ""},
		{"garbage token", "not-a-jwt"},
		{"expired token", expired},
		{"wrong signing key", wrongKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/operator/input", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()
			auth.Middleware(probe).ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestOperatorAuthDisabledWithoutSecret(t *testing.T) {
	auth := NewOperatorAuth("")
	probe, seen := authProbe()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/operator/input", nil)
	rec := httptest.NewRecorder()
	auth.Middleware(probe).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, seen.OperatorID)
}
