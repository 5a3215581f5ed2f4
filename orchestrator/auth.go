// Copyright 2025 CareFlow
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// OperatorClaims is the identity carried by an operator bearer token.
type OperatorClaims struct {
	OperatorID string
	Name       string
	Role       string
}

type contextKey string

const ctxKeyOperator contextKey = "operator"

// OperatorFromContext returns the authenticated operator, if any.
func OperatorFromContext(ctx context.Context) (OperatorClaims, bool) {
	claims, ok := ctx.Value(ctxKeyOperator).(OperatorClaims)
	return claims, ok
}

// OperatorAuth validates bearer tokens on operator endpoints. With an empty
// secret the middleware is disabled, which keeps local development and tests
// tokenless.
type OperatorAuth struct {
	secret []byte
}

// NewOperatorAuth creates the middleware.
func NewOperatorAuth(secret string) *OperatorAuth {
	return &OperatorAuth{secret: []byte(secret)}
}

// Middleware rejects requests without a valid operator token.
func (a *OperatorAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(a.secret) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := a.validate(extractBearerToken(r))
		if err != nil {
			log.Printf("[Auth] Rejected operator request to %s: %v", r.URL.Path, err)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyOperator, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *OperatorAuth) validate(tokenString string) (OperatorClaims, error) {
	if tokenString == "" {
		return OperatorClaims{}, fmt.Errorf("missing bearer token")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return OperatorClaims{}, fmt.Errorf("invalid token: %v", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return OperatorClaims{}, fmt.Errorf("invalid token claims")
	}

	return OperatorClaims{
		OperatorID: getClaimString(claims, "operator_id"),
		Name:       getClaimString(claims, "name"),
		Role:       getClaimString(claims, "role"),
	}, nil
}

func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	// WebSocket clients cannot always set headers; fall back to a query param.
	return r.URL.Query().Get("token")
}

func getClaimString(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}
