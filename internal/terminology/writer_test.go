package terminology

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeAccess struct {
	owner    Principal
	ownerErr error
	token    *AuthToken
	tokenErr error
	authErr  error
}

func (f *fakeAccess) ResolveOwner(context.Context, string, string) (Principal, error) {
	return f.owner, f.ownerErr
}

func (f *fakeAccess) ValidateToken(context.Context, string) (*AuthToken, error) {
	return f.token, f.tokenErr
}

func (f *fakeAccess) Authorize(context.Context, *AuthToken, string, string) error {
	return f.authErr
}

type fakeEngineTx struct {
	sourceID   GeneratedID
	conceptIDs []GeneratedID
	insertErr  error

	calls      []string
	concepts   []*Concept
	bumpedIDs  []GeneratedID
	linkedIDs  []GeneratedID
	linkedTo   GeneratedID
	committed  bool
	rolledBack bool
}

func (f *fakeEngineTx) CreateSource(_ context.Context, _ *Source) (GeneratedID, error) {
	f.calls = append(f.calls, "create_source")
	return f.sourceID, nil
}

func (f *fakeEngineTx) InsertLocalizedTexts(_ context.Context, texts []*LocalizedText) ([]GeneratedID, error) {
	f.calls = append(f.calls, "insert_texts")
	return make([]GeneratedID, len(texts)), nil
}

func (f *fakeEngineTx) InsertConcepts(_ context.Context, concepts []*Concept) ([]GeneratedID, error) {
	f.calls = append(f.calls, "insert_concepts")
	f.concepts = concepts
	return f.conceptIDs, f.insertErr
}

func (f *fakeEngineTx) BumpConceptVersions(_ context.Context, ids []GeneratedID) error {
	f.calls = append(f.calls, "bump_versions")
	f.bumpedIDs = ids
	return nil
}

func (f *fakeEngineTx) LinkConceptsToSource(_ context.Context, ids []GeneratedID, sourceID GeneratedID) error {
	f.calls = append(f.calls, "link_source")
	f.linkedIDs = ids
	f.linkedTo = sourceID
	return nil
}

func (f *fakeEngineTx) Commit() error {
	f.calls = append(f.calls, "commit")
	f.committed = true
	return nil
}

func (f *fakeEngineTx) Rollback() error {
	f.rolledBack = true
	return nil
}

type fakeStore struct {
	tx    *fakeEngineTx
	began bool
}

func (f *fakeStore) BeginBatch(context.Context) (EngineTx, error) {
	f.began = true
	return f.tx, nil
}

func authorizedAccess(owner Principal) *fakeAccess {
	actor := &UserProfile{ID: 7, Username: "alice"}
	return &fakeAccess{
		owner: owner,
		token: &AuthToken{Key: "abc123", User: actor},
	}
}

func TestCreateCodeSystem(t *testing.T) {
	org := &Organization{ID: 10, Mnemonic: "acme"}
	tx := &fakeEngineTx{sourceID: 5, conceptIDs: []GeneratedID{100, 101}}
	store := &fakeStore{tx: tx}
	w := NewWriter(authorizedAccess(org), NewConflictChecker(&fakeSourceRepo{}), store)

	src := &Source{Mnemonic: "cs1", Version: "1.0", CanonicalURL: "http://example.org/cs1"}
	concepts := []*Concept{{Mnemonic: "c1"}, {Mnemonic: "c2"}}

	res, err := w.CreateCodeSystem(context.Background(), &WriteRequest{
		AuthHeader: "Token abc123",
		OrgCode:    "acme",
		Source:     src,
		Concepts:   concepts,
	})
	require.NoError(t, err)
	require.Equal(t, GeneratedID(5), res.SourceID)
	require.Equal(t, []GeneratedID{100, 101}, res.ConceptIDs)

	require.Equal(t, []string{"create_source", "insert_concepts", "bump_versions", "link_source", "commit"}, tx.calls)
	require.Equal(t, []GeneratedID{100, 101}, tx.bumpedIDs)
	require.Equal(t, GeneratedID(5), tx.linkedTo)
	require.True(t, tx.committed)

	// Owner, parent and audit fields stamped before the batch ran.
	require.Equal(t, GeneratedID(10), src.OrganizationID)
	require.Equal(t, GeneratedID(7), src.CreatedByID)
	for _, c := range tx.concepts {
		require.Same(t, src, c.Parent)
		require.Equal(t, GeneratedID(7), c.CreatedByID)
	}
}

func TestCreateCodeSystemUserOwner(t *testing.T) {
	user := &UserProfile{ID: 3, Username: "alice"}
	tx := &fakeEngineTx{sourceID: 6}
	store := &fakeStore{tx: tx}
	w := NewWriter(authorizedAccess(user), NewConflictChecker(&fakeSourceRepo{}), store)

	src := &Source{Mnemonic: "cs1", Version: "1.0"}
	_, err := w.CreateCodeSystem(context.Background(), &WriteRequest{
		AuthHeader: "Token abc123",
		Username:   "alice",
		Source:     src,
	})
	require.NoError(t, err)
	require.Equal(t, GeneratedID(3), src.UserID)
	require.Zero(t, src.OrganizationID)

	// No concepts: version bump and source linking are skipped.
	require.Equal(t, []string{"create_source", "insert_concepts", "commit"}, tx.calls)
}

func TestCreateCodeSystemConflictStopsBeforeWrite(t *testing.T) {
	repo := &fakeSourceRepo{byID: map[existKey]bool{
		{"cs1", "1.0", "org:acme"}: true,
	}}
	store := &fakeStore{tx: &fakeEngineTx{}}
	w := NewWriter(authorizedAccess(&Organization{ID: 10}), NewConflictChecker(repo), store)

	_, err := w.CreateCodeSystem(context.Background(), &WriteRequest{
		AuthHeader: "Token abc123",
		OrgCode:    "acme",
		Source:     &Source{Mnemonic: "cs1", Version: "1.0"},
	})
	require.ErrorIs(t, err, ErrVersionConflict)
	require.False(t, store.began, "no transaction may start after a conflict")
}

func TestCreateCodeSystemDenied(t *testing.T) {
	access := authorizedAccess(&Organization{ID: 10})
	access.authErr = ErrUnauthorized
	store := &fakeStore{tx: &fakeEngineTx{}}
	w := NewWriter(access, NewConflictChecker(&fakeSourceRepo{}), store)

	_, err := w.CreateCodeSystem(context.Background(), &WriteRequest{
		AuthHeader: "Token abc123",
		OrgCode:    "acme",
		Source:     &Source{Mnemonic: "cs1", Version: "1.0"},
	})
	require.ErrorIs(t, err, ErrUnauthorized)
	require.False(t, store.began)
}

func TestCreateCodeSystemRollsBackOnInsertFailure(t *testing.T) {
	tx := &fakeEngineTx{sourceID: 5, insertErr: errors.New("boom")}
	store := &fakeStore{tx: tx}
	w := NewWriter(authorizedAccess(&Organization{ID: 10}), NewConflictChecker(&fakeSourceRepo{}), store)

	_, err := w.CreateCodeSystem(context.Background(), &WriteRequest{
		AuthHeader: "Token abc123",
		OrgCode:    "acme",
		Source:     &Source{Mnemonic: "cs1", Version: "1.0"},
		Concepts:   []*Concept{{Mnemonic: "c1"}},
	})
	require.Error(t, err)
	require.True(t, tx.rolledBack)
	require.False(t, tx.committed)
}

func TestWriteOutcome(t *testing.T) {
	cases := map[string]struct {
		err  error
		want string
	}{
		"ok":        {nil, "ok"},
		"unauth":    {ErrUnauthenticated, "denied"},
		"forbidden": {ErrUnauthorized, "denied"},
		"conflict":  {ErrVersionConflict, "conflict"},
		"invalid":   {ErrInvalidRequest, "rejected"},
		"notfound":  {ErrNotFound, "rejected"},
		"other":     {errors.New("boom"), "error"},
	}
	for name, tc := range cases {
		require.Equal(t, tc.want, writeOutcome(tc.err), name)
	}
}
