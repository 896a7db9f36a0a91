package jwttoken

import (
	"context"

	authmw "prereg/pkg/platform/middleware/auth"
)

func ToMiddlewareClaims(claims *Claims) *authmw.CallerClaims {
	return &authmw.CallerClaims{
		UserID: claims.Caller(),
		Roles:  append([]string(nil), claims.Roles...),
	}
}

// JWTServiceAdapter lets the auth middleware resolve callers from bearer
// tokens.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ResolveCaller(_ context.Context, tokenString string) (*authmw.CallerClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return ToMiddlewareClaims(claims), nil
}
