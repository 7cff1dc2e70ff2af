// Package identity models who owns a cart or an order: an authenticated
// user known by uuid, or a guest known only by an opaque session token.
package identity

import (
	"context"
	"encoding/hex"

	"github.com/google/uuid"
	"golang.org/x/crypto/sha3"

	"github.com/ametori/storefront/internal/errors"
)

type OwnerKind int

const (
	OwnerUser OwnerKind = iota + 1
	OwnerSession
)

// Owner is a tagged variant: exactly one of UserID or SessionToken is set.
type Owner struct {
	Kind         OwnerKind
	UserID       uuid.UUID
	SessionToken string
}

func User(id uuid.UUID) Owner {
	return Owner{Kind: OwnerUser, UserID: id}
}

func Session(token string) Owner {
	return Owner{Kind: OwnerSession, SessionToken: token}
}

func (o Owner) IsUser() bool {
	return o.Kind == OwnerUser
}

func (o Owner) IsSession() bool {
	return o.Kind == OwnerSession
}

// SessionDigest returns the digest under which a guest session cart is
// persisted. Raw session tokens never reach the database.
func (o Owner) SessionDigest() []byte {
	sum := sha3.Sum256([]byte(o.SessionToken))
	return sum[:]
}

func (o Owner) String() string {
	if o.IsUser() {
		return "user:" + o.UserID.String()
	}
	return "session:" + hex.EncodeToString(o.SessionDigest())
}

// NewSessionToken mints an opaque token for a guest without one.
func NewSessionToken() string {
	return uuid.NewString()
}

type ownerKey struct{}

func AttachOwnerToContext(c context.Context, owner Owner) context.Context {
	return context.WithValue(c, ownerKey{}, owner)
}

func OwnerFromContext(c context.Context) (Owner, error) {
	owner, ok := c.Value(ownerKey{}).(Owner)
	if !ok {
		return Owner{}, errors.ErrEmptySubject
	}
	return owner, nil
}

// UserFromContext returns the authenticated user id, rejecting guests.
func UserFromContext(c context.Context) (uuid.UUID, error) {
	owner, err := OwnerFromContext(c)
	if err != nil {
		return uuid.Nil, err
	}
	if !owner.IsUser() {
		return uuid.Nil, errors.ErrEmptyAuth
	}
	return owner.UserID, nil
}
