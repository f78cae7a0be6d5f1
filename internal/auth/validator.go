package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"conceptlab.org/internal/terminology"
)

// OrganizationRepo resolves organizations by mnemonic code.
type OrganizationRepo interface {
	FindByMnemonic(ctx context.Context, mnemonic string) (*terminology.Organization, error)
}

// UserRepo resolves user profiles by username.
type UserRepo interface {
	FindByUsername(ctx context.Context, username string) (*terminology.UserProfile, error)
}

// TokenRepo resolves auth tokens by their trimmed key.
type TokenRepo interface {
	FindByKey(ctx context.Context, key string) (*terminology.AuthToken, error)
}

// MembershipRepo lists an organization's members with each member's own token
// set preloaded.
type MembershipRepo interface {
	MembersWithTokens(ctx context.Context, orgMnemonic string) ([]*terminology.UserProfile, error)
}

// Validator resolves the target owner, validates the incoming token and
// authorizes the acting principal against that owner. All checks are
// read-only; repos are injected at construction.
type Validator struct {
	orgs        OrganizationRepo
	users       UserRepo
	tokens      TokenRepo
	memberships MembershipRepo
}

func NewValidator(orgs OrganizationRepo, users UserRepo, tokens TokenRepo, memberships MembershipRepo) *Validator {
	return &Validator{orgs: orgs, users: users, tokens: tokens, memberships: memberships}
}

// tokenScheme matches the conventional `Token <secret>` header marker.
var tokenScheme = regexp.MustCompile(`(?i)^token\s+`)

// ResolveOwner returns the organization when orgCode is non-empty, otherwise
// the user matching username. A missing principal is ErrNotFound.
func (v *Validator) ResolveOwner(ctx context.Context, orgCode, username string) (terminology.Principal, error) {
	if strings.TrimSpace(orgCode) != "" {
		org, err := v.orgs.FindByMnemonic(ctx, orgCode)
		if errors.Is(err, terminology.ErrNotFound) {
			return nil, fmt.Errorf("%w: organization %q does not exist", terminology.ErrNotFound, orgCode)
		}
		if err != nil {
			return nil, err
		}
		return org, nil
	}
	user, err := v.users.FindByUsername(ctx, username)
	if errors.Is(err, terminology.ErrNotFound) {
		return nil, fmt.Errorf("%w: user %q does not exist", terminology.ErrNotFound, username)
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// ValidateToken strips the scheme marker and looks the token up by key. A
// blank header is ErrUnauthenticated; an unknown key is not an error here —
// it yields a nil token that Authorize rejects.
func (v *Validator) ValidateToken(ctx context.Context, rawHeader string) (*terminology.AuthToken, error) {
	raw := strings.TrimSpace(rawHeader)
	if raw == "" {
		return nil, fmt.Errorf("%w: authentication token is not provided", terminology.ErrUnauthenticated)
	}
	key := strings.TrimSpace(tokenScheme.ReplaceAllString(raw, ""))
	token, err := v.tokens.FindByKey(ctx, key)
	if errors.Is(err, terminology.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return token, nil
}

// Authorize checks the validated token against the target owner. The user
// path requires an exact username match. The organization path requires the
// acting user to be a member of the organization AND to hold a token with the
// same key inside the membership edge's own token set.
func (v *Validator) Authorize(ctx context.Context, token *terminology.AuthToken, username, orgCode string) error {
	if token == nil || token.User == nil {
		return fmt.Errorf("%w: invalid authentication token", terminology.ErrUnauthenticated)
	}
	switch {
	case strings.TrimSpace(username) != "":
		if token.User.Username != username {
			return fmt.Errorf("%w: %s is not authorized to use the token provided", terminology.ErrUnauthorized, username)
		}
		return nil
	case strings.TrimSpace(orgCode) != "":
		members, err := v.memberships.MembersWithTokens(ctx, orgCode)
		if err != nil {
			return err
		}
		for _, m := range members {
			if m.Username != token.User.Username {
				continue
			}
			for _, t := range m.Tokens {
				if t.Key == token.Key {
					return nil
				}
			}
		}
		return fmt.Errorf("%w: user %s is not authorized to access organization %s",
			terminology.ErrUnauthorized, token.User.Username, orgCode)
	default:
		return fmt.Errorf("%w: owner cannot be empty", terminology.ErrInvalidRequest)
	}
}
