package terminology

import "context"

// SourceRepo exposes the owner-scoped existence probes the conflict checker
// runs before any write begins.
type SourceRepo interface {
	ExistsByIDForUser(ctx context.Context, mnemonic, version, username string) (bool, error)
	ExistsByIDForOrg(ctx context.Context, mnemonic, version, orgMnemonic string) (bool, error)
	ExistsByURLForUser(ctx context.Context, canonicalURL, version, username string) (bool, error)
	ExistsByURLForOrg(ctx context.Context, canonicalURL, version, orgMnemonic string) (bool, error)
}

// Engine is the batched multi-table write surface. Implementations bind either
// a connection pool or an open transaction; atomicity across the calls below
// is the caller's responsibility (see Store.BeginBatch).
type Engine interface {
	// CreateSource inserts the source row and returns its generated id.
	CreateSource(ctx context.Context, src *Source) (GeneratedID, error)

	// InsertLocalizedTexts inserts one row per text, preserving input order so
	// the returned ids align positionally. Per-row failures do not undo rows
	// already inserted within the call.
	InsertLocalizedTexts(ctx context.Context, texts []*LocalizedText) ([]GeneratedID, error)

	// InsertConcepts inserts each concept's scalar row, then that concept's
	// name and description texts with their link rows, threading the freshly
	// generated concept id into the link inserts. Returned ids align with the
	// input order.
	InsertConcepts(ctx context.Context, concepts []*Concept) ([]GeneratedID, error)

	// BumpConceptVersions sets the version column of every listed concept to
	// its own row id, in a single statement.
	BumpConceptVersions(ctx context.Context, ids []GeneratedID) error

	// LinkConceptsToSource associates every listed concept with the same
	// source in a single multi-row insert.
	LinkConceptsToSource(ctx context.Context, ids []GeneratedID, sourceID GeneratedID) error
}

// EngineTx is an Engine bound to one database transaction.
type EngineTx interface {
	Engine
	Commit() error
	Rollback() error
}

// Store opens transactional batch engines. The writer wraps one whole concept
// graph insert in a single EngineTx so a mid-batch failure leaves nothing
// durable.
type Store interface {
	BeginBatch(ctx context.Context) (EngineTx, error)
}
