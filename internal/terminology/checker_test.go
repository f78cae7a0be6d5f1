package terminology

import (
	"context"
	"errors"
	"testing"
)

type existKey struct {
	value, version, owner string
}

type fakeSourceRepo struct {
	byID  map[existKey]bool
	byURL map[existKey]bool
}

func (f *fakeSourceRepo) ExistsByIDForUser(_ context.Context, mnemonic, version, username string) (bool, error) {
	return f.byID[existKey{mnemonic, version, "user:" + username}], nil
}

func (f *fakeSourceRepo) ExistsByIDForOrg(_ context.Context, mnemonic, version, org string) (bool, error) {
	return f.byID[existKey{mnemonic, version, "org:" + org}], nil
}

func (f *fakeSourceRepo) ExistsByURLForUser(_ context.Context, url, version, username string) (bool, error) {
	return f.byURL[existKey{url, version, "user:" + username}], nil
}

func (f *fakeSourceRepo) ExistsByURLForOrg(_ context.Context, url, version, org string) (bool, error) {
	return f.byURL[existKey{url, version, "org:" + org}], nil
}

func TestCheckID(t *testing.T) {
	repo := &fakeSourceRepo{byID: map[existKey]bool{
		{"123", "1.0", "user:alice"}: true,
		{"456", "1.0", "org:acme"}:   true,
	}}
	c := NewConflictChecker(repo)
	ctx := context.Background()

	if err := c.CheckID(ctx, "alice", "", "123", "1.0", ResourceCodeSystem); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
	if err := c.CheckID(ctx, "", "acme", "456", "1.0", ResourceCodeSystem); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict for org scope, got %v", err)
	}
	// Same id, fresh version: no conflict.
	if err := c.CheckID(ctx, "alice", "", "123", "2.0", ResourceCodeSystem); err != nil {
		t.Fatalf("unexpected conflict: %v", err)
	}
	// Same identity under a different owner: conflicts are owner-scoped.
	if err := c.CheckID(ctx, "bob", "", "123", "1.0", ResourceCodeSystem); err != nil {
		t.Fatalf("conflict leaked across owners: %v", err)
	}
}

func TestCheckCanonicalURL(t *testing.T) {
	repo := &fakeSourceRepo{byURL: map[existKey]bool{
		{"http://example.org/cs", "1.0", "org:acme"}: true,
	}}
	c := NewConflictChecker(repo)
	ctx := context.Background()

	if err := c.CheckCanonicalURL(ctx, "", "acme", "http://example.org/cs", "1.0", ResourceCodeSystem); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
	if err := c.CheckCanonicalURL(ctx, "", "acme", "http://example.org/cs", "2.0", ResourceCodeSystem); err != nil {
		t.Fatalf("unexpected conflict: %v", err)
	}
}

func TestCheckRejectsUnknownResourceType(t *testing.T) {
	c := NewConflictChecker(&fakeSourceRepo{})
	ctx := context.Background()

	if err := c.CheckID(ctx, "alice", "", "123", "1.0", "ValueSet"); !errors.Is(err, ErrInternal) {
		t.Fatalf("expected ErrInternal, got %v", err)
	}
	if err := c.CheckCanonicalURL(ctx, "alice", "", "http://example.org/vs", "1.0", "ValueSet"); !errors.Is(err, ErrInternal) {
		t.Fatalf("expected ErrInternal, got %v", err)
	}
}
