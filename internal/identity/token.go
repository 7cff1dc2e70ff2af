package identity

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ametori/storefront/internal/errors"
	"github.com/ametori/storefront/internal/log"
)

// VerifyToken parses and validates a bearer token issued by the identity
// provider. The audience selects between regular and privileged tokens.
func VerifyToken(
	c context.Context,
	token string,
	secretKey string,
	audience string,
) (*jwt.Token, error) {
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "VerifyToken").
		Logger()

	logger = logger.With().Str(log.KeyProcess, "parsing claims").Logger()
	logger.Trace().Msg("parsing claims")
	jwtToken, err := jwt.ParseWithClaims(token,
		&jwt.RegisteredClaims{},
		func(t *jwt.Token) (interface{}, error) {
			return []byte(secretKey), nil
		},
		jwt.WithAudience(audience),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		err = fmt.Errorf("failed parsing claims with error=%w", err)
		logger.Error().Err(err).Msg(err.Error())
		return nil, err
	}
	logger.Trace().Msg("parsed claims")

	if !jwtToken.Valid {
		logger.Error().Err(errors.ErrTokenInvalid).Msg(errors.ErrTokenInvalid.Error())
		return nil, errors.ErrTokenInvalid
	}

	return jwtToken, nil
}

// UserIDFromToken extracts the subject claim as the user id.
func UserIDFromToken(jwtToken *jwt.Token) (uuid.UUID, error) {
	subject, err := jwtToken.Claims.GetSubject()
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed getting subject from jwt with error=%w", err)
	}
	if subject == "" {
		return uuid.Nil, errors.ErrEmptySubject
	}
	userId, err := uuid.Parse(subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed parsing subject=%s with error=%w", subject, err)
	}
	return userId, nil
}
