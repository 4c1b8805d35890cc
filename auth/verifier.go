package auth

import (
	"fmt"
	"log/slog"

	"veilchat/domain"
	"veilchat/errors"
)

// UserResolver is the slice of the account store the verifier needs.
type UserResolver interface {
	GetByID(userID domain.UserID) (domain.User, error)
	GetByUsername(username string) (domain.User, error)
}

// Verifier resolves a bearer credential to a user identity. It is
// stateless and synchronous relative to the connection handshake.
type Verifier struct {
	codec TokenCodec
	users UserResolver
	log   *slog.Logger
}

func NewVerifier(codec TokenCodec, users UserResolver, log *slog.Logger) *Verifier {
	return &Verifier{codec: codec, users: users, log: log}
}

// Verify validates the credential and resolves its subject. The peer
// only ever learns invalid_credential; whether the token was
// malformed, expired, or points at an unknown account is logged here
// and nowhere else.
func (v *Verifier) Verify(credential string) (domain.Identity, error) {
	claims, err := v.codec.Validate(credential)
	if err != nil {
		v.log.Warn("credential rejected", "error", err)
		return domain.Identity{}, errors.ErrInvalidCredential
	}

	// The subject is the username; older tokens may only carry the
	// numeric user_id claim, so fall back to it.
	user, err := v.users.GetByUsername(claims.Subject)
	if err != nil && claims.UserID != 0 {
		user, err = v.users.GetByID(domain.UserID(claims.UserID))
	}
	if err != nil {
		v.log.Warn(fmt.Sprintf("credential decoded but subject %q not found", claims.Subject))
		return domain.Identity{}, errors.ErrInvalidCredential
	}

	return user.Identity(), nil
}
