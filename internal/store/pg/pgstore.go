package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"conceptlab.org/internal/auth"
	"conceptlab.org/internal/terminology"
)

// Store wraps the shared connection pool. Repositories and batch engines
// created from it are stateless views over the same pool.
type Store struct {
	db *sql.DB
}

var _ terminology.Store = (*Store)(nil)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// New wraps an existing pool, mainly for tests.
func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Organizations() auth.OrganizationRepo { return &orgRepo{db: s.db} }
func (s *Store) Users() auth.UserRepo                 { return &userRepo{db: s.db} }
func (s *Store) Tokens() auth.TokenRepo               { return &tokenRepo{db: s.db} }
func (s *Store) Memberships() auth.MembershipRepo     { return &membershipRepo{db: s.db} }
func (s *Store) Sources() terminology.SourceRepo      { return &sourceRepo{db: s.db} }

// BeginBatch opens a transaction-bound engine; the caller owns the
// commit/rollback boundary.
func (s *Store) BeginBatch(ctx context.Context) (terminology.EngineTx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &engineTx{Engine: Engine{db: tx}, tx: tx}, nil
}

// Organization repo --------------------------------------------------------
type orgRepo struct{ db *sql.DB }

func (r *orgRepo) FindByMnemonic(ctx context.Context, mnemonic string) (*terminology.Organization, error) {
	row := r.db.QueryRowContext(ctx,
		`select id, mnemonic, name, created_at, updated_at from organizations where mnemonic=$1`, mnemonic)
	var org terminology.Organization
	if err := row.Scan(&org.ID, &org.Mnemonic, &org.Name, &org.CreatedAt, &org.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, terminology.ErrNotFound
		}
		return nil, err
	}
	return &org, nil
}

// User repo ----------------------------------------------------------------
type userRepo struct{ db *sql.DB }

func (r *userRepo) FindByUsername(ctx context.Context, username string) (*terminology.UserProfile, error) {
	row := r.db.QueryRowContext(ctx,
		`select id, username, email, created_at, updated_at from users where username=$1`, username)
	var u terminology.UserProfile
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, terminology.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// Token repo ---------------------------------------------------------------
type tokenRepo struct{ db *sql.DB }

func (r *tokenRepo) FindByKey(ctx context.Context, key string) (*terminology.AuthToken, error) {
	row := r.db.QueryRowContext(ctx, `
		select t.key, u.id, u.username, u.email
		from auth_tokens t
		join users u on u.id = t.user_id
		where t.key=$1`, key)
	var (
		tok  terminology.AuthToken
		user terminology.UserProfile
	)
	if err := row.Scan(&tok.Key, &user.ID, &user.Username, &user.Email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, terminology.ErrNotFound
		}
		return nil, err
	}
	tok.User = &user
	return &tok, nil
}

// Membership repo ----------------------------------------------------------
type membershipRepo struct{ db *sql.DB }

// MembersWithTokens returns the organization's members with each member's own
// token set attached, one joined row per (member, token) pair before grouping.
func (r *membershipRepo) MembersWithTokens(ctx context.Context, orgMnemonic string) ([]*terminology.UserProfile, error) {
	rows, err := r.db.QueryContext(ctx, `
		select u.id, u.username, u.email, coalesce(t.key, '')
		from users u
		join user_organizations m on m.user_id = u.id
		join organizations o on o.id = m.organization_id
		left join auth_tokens t on t.user_id = u.id
		where o.mnemonic=$1
		order by u.id`, orgMnemonic)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []*terminology.UserProfile
	byID := map[terminology.GeneratedID]*terminology.UserProfile{}
	for rows.Next() {
		var (
			id       terminology.GeneratedID
			username string
			email    string
			key      string
		)
		if err := rows.Scan(&id, &username, &email, &key); err != nil {
			return nil, err
		}
		m, ok := byID[id]
		if !ok {
			m = &terminology.UserProfile{ID: id, Username: username, Email: email}
			byID[id] = m
			members = append(members, m)
		}
		if key != "" {
			m.Tokens = append(m.Tokens, terminology.AuthToken{Key: key, User: m})
		}
	}
	return members, rows.Err()
}

// Source repo --------------------------------------------------------------
type sourceRepo struct{ db *sql.DB }

func (r *sourceRepo) ExistsByIDForUser(ctx context.Context, mnemonic, version, username string) (bool, error) {
	return r.exists(ctx, `
		select exists(
			select 1 from sources s
			join users u on u.id = s.user_id
			where s.mnemonic=$1 and s.version=$2 and u.username=$3
		)`, mnemonic, version, username)
}

func (r *sourceRepo) ExistsByIDForOrg(ctx context.Context, mnemonic, version, orgMnemonic string) (bool, error) {
	return r.exists(ctx, `
		select exists(
			select 1 from sources s
			join organizations o on o.id = s.organization_id
			where s.mnemonic=$1 and s.version=$2 and o.mnemonic=$3
		)`, mnemonic, version, orgMnemonic)
}

func (r *sourceRepo) ExistsByURLForUser(ctx context.Context, canonicalURL, version, username string) (bool, error) {
	return r.exists(ctx, `
		select exists(
			select 1 from sources s
			join users u on u.id = s.user_id
			where s.canonical_url=$1 and s.version=$2 and u.username=$3
		)`, canonicalURL, version, username)
}

func (r *sourceRepo) ExistsByURLForOrg(ctx context.Context, canonicalURL, version, orgMnemonic string) (bool, error) {
	return r.exists(ctx, `
		select exists(
			select 1 from sources s
			join organizations o on o.id = s.organization_id
			where s.canonical_url=$1 and s.version=$2 and o.mnemonic=$3
		)`, canonicalURL, version, orgMnemonic)
}

func (r *sourceRepo) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var found bool
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&found); err != nil {
		return false, err
	}
	return found, nil
}
