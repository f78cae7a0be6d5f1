package terminology

import (
	"context"
	"errors"
	"time"

	"conceptlab.org/internal/audit"
	"conceptlab.org/internal/ids"
	"conceptlab.org/internal/obs"
)

// AccessValidator authenticates the acting principal and authorizes it
// against the target owner before any write begins.
type AccessValidator interface {
	ResolveOwner(ctx context.Context, orgCode, username string) (Principal, error)
	ValidateToken(ctx context.Context, rawHeader string) (*AuthToken, error)
	Authorize(ctx context.Context, token *AuthToken, username, orgCode string) error
}

// WriteRequest carries one CodeSystem write: the raw auth header, the target
// owner (exactly one of OrgCode/Username meaningful, org takes precedence),
// and the already-shaped source with its concept graph.
type WriteRequest struct {
	AuthHeader string
	OrgCode    string
	Username   string
	Source     *Source
	Concepts   []*Concept
}

// WriteResult reports the generated keys of a completed write.
type WriteResult struct {
	SourceID   GeneratedID
	ConceptIDs []GeneratedID
}

// Writer drives one write pass: access control, conflict detection, then the
// batch persistence engine inside a single transaction. All dependencies are
// injected at construction; a Writer holds no mutable state of its own.
type Writer struct {
	access  AccessValidator
	checker *ConflictChecker
	store   Store
}

func NewWriter(access AccessValidator, checker *ConflictChecker, store Store) *Writer {
	return &Writer{access: access, checker: checker, store: store}
}

// CreateCodeSystem runs the full pipeline for one request. Every failure is
// terminal for the request; nothing is retried here.
func (w *Writer) CreateCodeSystem(ctx context.Context, req *WriteRequest) (*WriteResult, error) {
	rid := ids.New()
	ctx = audit.WithRequestID(ctx, rid)
	log := obs.Logger().With("request_id", rid, "resource", req.Source.Mnemonic, "version", req.Source.Version)
	start := time.Now()

	res, err := w.createCodeSystem(ctx, req)
	obs.ObserveWrite(writeOutcome(err), time.Since(start))
	if err != nil {
		log.Warnw("codesystem write rejected", "outcome", writeOutcome(err), "error", err)
		return nil, err
	}

	obs.AddConceptsInserted(len(res.ConceptIDs))
	log.Infow("codesystem written", "source_id", int64(res.SourceID), "concepts", len(res.ConceptIDs))
	return res, nil
}

func (w *Writer) createCodeSystem(ctx context.Context, req *WriteRequest) (*WriteResult, error) {
	owner, err := w.access.ResolveOwner(ctx, req.OrgCode, req.Username)
	if err != nil {
		return nil, err
	}
	token, err := w.access.ValidateToken(ctx, req.AuthHeader)
	if err != nil {
		return nil, err
	}
	if err := w.access.Authorize(ctx, token, req.Username, req.OrgCode); err != nil {
		return nil, err
	}
	actor := token.User
	ctx = audit.WithActor(ctx, actor.Username)

	src := req.Source
	if err := w.checker.CheckID(ctx, req.Username, req.OrgCode, src.Mnemonic, src.Version, ResourceCodeSystem); err != nil {
		return nil, err
	}
	if src.CanonicalURL != "" {
		if err := w.checker.CheckCanonicalURL(ctx, req.Username, req.OrgCode, src.CanonicalURL, src.Version, ResourceCodeSystem); err != nil {
			return nil, err
		}
	}

	switch p := owner.(type) {
	case *Organization:
		src.OrganizationID = p.ID
	case *UserProfile:
		src.UserID = p.ID
	}
	if src.CreatedByID == 0 {
		src.CreatedByID, src.UpdatedByID = actor.ID, actor.ID
	}

	// One transaction around the whole graph insert: the engine itself gives
	// no all-or-nothing guarantee (see Engine docs).
	tx, err := w.store.BeginBatch(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	sourceID, err := tx.CreateSource(ctx, src)
	if err != nil {
		return nil, err
	}
	src.ID = sourceID
	for _, c := range req.Concepts {
		c.Parent = src
		if c.CreatedByID == 0 {
			c.CreatedByID, c.UpdatedByID = actor.ID, actor.ID
		}
	}

	conceptIDs, err := tx.InsertConcepts(ctx, req.Concepts)
	if err != nil {
		return nil, err
	}
	if len(conceptIDs) > 0 {
		if err := tx.BumpConceptVersions(ctx, conceptIDs); err != nil {
			return nil, err
		}
		if err := tx.LinkConceptsToSource(ctx, conceptIDs, sourceID); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	_ = audit.LogEvent(ctx, "codesystem.write", map[string]any{
		"org":      req.OrgCode,
		"user":     req.Username,
		"source":   int64(sourceID),
		"concepts": len(conceptIDs),
	})
	return &WriteResult{SourceID: sourceID, ConceptIDs: conceptIDs}, nil
}

func writeOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnauthenticated), errors.Is(err, ErrUnauthorized):
		return "denied"
	case errors.Is(err, ErrVersionConflict):
		return "conflict"
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrNotFound):
		return "rejected"
	default:
		return "error"
	}
}
