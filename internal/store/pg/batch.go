package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"conceptlab.org/internal/terminology"
)

// execer is satisfied by both *sql.DB and *sql.Tx so the caller picks the
// transaction boundary.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Engine performs the ordered multi-table writes of a concept graph. It gives
// no all-or-nothing guarantee by itself; wrap it in a transaction via
// Store.BeginBatch when atomicity is required.
type Engine struct {
	db execer
}

var _ terminology.Engine = (*Engine)(nil)

// NewEngine binds an engine to a pool or an open transaction.
func NewEngine(db execer) *Engine { return &Engine{db: db} }

type engineTx struct {
	Engine
	tx *sql.Tx
}

func (t *engineTx) Commit() error   { return t.tx.Commit() }
func (t *engineTx) Rollback() error { return t.tx.Rollback() }

// LinkTable names a two-column foreign-key pair table.
type LinkTable struct {
	name      string
	childCol  string
	parentCol string
}

var (
	ConceptNamesTable        = LinkTable{"concepts_names", "localizedtext_id", "concept_id"}
	ConceptDescriptionsTable = LinkTable{"concepts_descriptions", "localizedtext_id", "concept_id"}
	ConceptSourcesTable      = LinkTable{"concepts_sources", "concept_id", "source_id"}
)

// LinkPair is one (child, parent) row for a link table.
type LinkPair struct {
	Child  terminology.GeneratedID
	Parent terminology.GeneratedID
}

const insertLocalizedTextSQL = `
	insert into localized_texts (name, type, locale, locale_preferred, created_at)
	values ($1,$2,$3,$4,$5)
	returning id`

const insertConceptSQL = `
	insert into concepts (
		mnemonic, version, name, full_name, default_locale, concept_class, datatype,
		comment, public_access, is_active, released, retired, is_latest_version,
		extras, uri, created_by_id, updated_by_id, parent_id, created_at, updated_at
	) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
	returning id`

const insertSourceSQL = `
	insert into sources (
		mnemonic, version, canonical_url, name, full_name, default_locale, uri,
		public_access, is_active, released, retired, is_latest_version, extras,
		identifier, contact, jurisdiction, organization_id, user_id,
		created_by_id, updated_by_id, created_at, updated_at
	) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)
	returning id`

// CreateSource inserts the source row. Exactly one of the owner columns is
// populated; the other stays null.
func (e *Engine) CreateSource(ctx context.Context, src *terminology.Source) (terminology.GeneratedID, error) {
	return e.insertReturningID(ctx, insertSourceSQL,
		src.Mnemonic, src.Version, src.CanonicalURL, src.Name, src.FullName,
		src.DefaultLocale, src.URI, src.PublicAccess, src.IsActive, src.Released,
		src.Retired, src.IsLatestVersion, src.Extras, src.Identifier, src.Contact,
		src.Jurisdiction, nullID(src.OrganizationID), nullID(src.UserID),
		int64(src.CreatedByID), int64(src.UpdatedByID), src.CreatedAt, src.UpdatedAt)
}

// InsertLocalizedTexts inserts one row per text in input order and returns the
// generated ids positionally. A failure partway leaves earlier rows inserted;
// the enclosing transaction is the caller's rollback lever.
func (e *Engine) InsertLocalizedTexts(ctx context.Context, texts []*terminology.LocalizedText) ([]terminology.GeneratedID, error) {
	keys := make([]terminology.GeneratedID, 0, len(texts))
	for _, t := range texts {
		id, err := e.insertReturningID(ctx, insertLocalizedTextSQL,
			t.Name, t.Type, t.Locale, t.LocalePreferred, t.CreatedAt)
		if err != nil {
			return nil, err
		}
		keys = append(keys, id)
	}
	return keys, nil
}

// LinkRows submits all pairs as one multi-row insert. Zero pairs is a no-op.
func (e *Engine) LinkRows(ctx context.Context, table LinkTable, pairs []LinkPair) error {
	if len(pairs) == 0 {
		return nil
	}
	var sb strings.Builder
	args := make([]any, 0, len(pairs)*2)
	fmt.Fprintf(&sb, "insert into %s (%s, %s) values ", table.name, table.childCol, table.parentCol)
	for i, p := range pairs {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "($%d,$%d)", i*2+1, i*2+2)
		args = append(args, int64(p.Child), int64(p.Parent))
	}
	_, err := e.db.ExecContext(ctx, sb.String(), args...)
	return err
}

// InsertConcepts inserts each concept's scalar row, then its localized texts
// and their link rows against the freshly generated concept id. Concepts are
// processed serially in input order; each link step depends on its own
// concept's key.
func (e *Engine) InsertConcepts(ctx context.Context, concepts []*terminology.Concept) ([]terminology.GeneratedID, error) {
	ids := make([]terminology.GeneratedID, 0, len(concepts))
	for _, c := range concepts {
		id, err := e.insertConcept(ctx, c)
		if err != nil {
			return nil, err
		}
		if err := e.insertTextsAndLink(ctx, ConceptNamesTable, c.Names, id); err != nil {
			return nil, err
		}
		if err := e.insertTextsAndLink(ctx, ConceptDescriptionsTable, c.Descriptions, id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (e *Engine) insertConcept(ctx context.Context, c *terminology.Concept) (terminology.GeneratedID, error) {
	if c.Parent == nil {
		return 0, fmt.Errorf("%w: concept %s has no parent source", terminology.ErrInternal, c.Mnemonic)
	}
	// created_at/updated_at deliberately come from the parent source.
	return e.insertReturningID(ctx, insertConceptSQL,
		c.Mnemonic, c.Version, c.Name, c.FullName, c.DefaultLocale, c.ConceptClass,
		c.Datatype, c.Comment, c.PublicAccess, c.IsActive, c.Released, c.Retired,
		c.IsLatestVersion, c.Extras, c.URI, int64(c.CreatedByID), int64(c.UpdatedByID),
		int64(c.Parent.ID), c.Parent.CreatedAt, c.Parent.UpdatedAt)
}

func (e *Engine) insertTextsAndLink(ctx context.Context, table LinkTable, texts []*terminology.LocalizedText, conceptID terminology.GeneratedID) error {
	kept := texts[:0:0]
	for _, t := range texts {
		if t != nil {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	textIDs, err := e.InsertLocalizedTexts(ctx, kept)
	if err != nil {
		return err
	}
	pairs := make([]LinkPair, len(textIDs))
	for i, tid := range textIDs {
		pairs[i] = LinkPair{Child: tid, Parent: conceptID}
	}
	return e.LinkRows(ctx, table, pairs)
}

// BumpConceptVersions rewrites each listed concept's version to its own row
// id, as a single statement.
func (e *Engine) BumpConceptVersions(ctx context.Context, ids []terminology.GeneratedID) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = int64(id)
	}
	query := fmt.Sprintf("update concepts set version = id::text where id in (%s)", strings.Join(placeholders, ","))
	_, err := e.db.ExecContext(ctx, query, args...)
	return err
}

// LinkConceptsToSource pairs every concept id with the same source id in one
// multi-row insert.
func (e *Engine) LinkConceptsToSource(ctx context.Context, ids []terminology.GeneratedID, sourceID terminology.GeneratedID) error {
	pairs := make([]LinkPair, len(ids))
	for i, id := range ids {
		pairs[i] = LinkPair{Child: id, Parent: sourceID}
	}
	return e.LinkRows(ctx, ConceptSourcesTable, pairs)
}

func (e *Engine) insertReturningID(ctx context.Context, query string, args ...any) (terminology.GeneratedID, error) {
	var id int64
	if err := e.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%w: insert returned no generated key", terminology.ErrInternal)
		}
		return 0, err
	}
	return terminology.GeneratedID(id), nil
}

func nullID(id terminology.GeneratedID) any {
	if id == 0 {
		return nil
	}
	return int64(id)
}
