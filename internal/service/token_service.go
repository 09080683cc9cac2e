package service

import (
	"fmt"
	"strconv"
	"time"

	"course-enrollment/internal/domain/user"
	appErrors "course-enrollment/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the access token payload: sub carries the user id and role the
// numeric user role.
type Claims struct {
	Role user.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenService verifies HS256 access tokens issued by the identity service.
// Issue exists for tooling such as the load test.
type TokenService struct {
	secret []byte
	issuer string
}

func NewTokenService(secret, issuer string) *TokenService {
	return &TokenService{secret: []byte(secret), issuer: issuer}
}

func (s *TokenService) Issue(actor user.Actor, ttl time.Duration) (string, error) {
	if len(s.secret) == 0 {
		return "", fmt.Errorf("jwt secret is not configured")
	}
	now := time.Now()
	claims := Claims{
		Role: actor.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(actor.UserID, 10),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *TokenService) Validate(tokenString string) (user.Actor, error) {
	if len(s.secret) == 0 {
		return user.Actor{}, appErrors.Clone(appErrors.ErrUnauthorized, "token verification is not configured")
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return user.Actor{}, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return user.Actor{}, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return user.Actor{}, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token subject")
	}
	if !claims.Role.Valid() {
		return user.Actor{}, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token role")
	}
	return user.Actor{UserID: userID, Role: claims.Role}, nil
}
