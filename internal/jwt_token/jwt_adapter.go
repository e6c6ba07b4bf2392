package jwttoken

import (
	authmw "vericore/pkg/platform/middleware/auth"
)

// JWTServiceAdapter exposes JWTService as the auth middleware's TokenValidator.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*authmw.ReviewerClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &authmw.ReviewerClaims{ReviewerID: claims.ReviewerID, Name: claims.Name}, nil
}
