package terminology

import "time"

// GeneratedID is a store-assigned surrogate key. Widening from narrower
// numeric column types happens once, at the store adapter boundary.
type GeneratedID int64

// ResourceCodeSystem is the only resource type the write core supports.
const ResourceCodeSystem = "CodeSystem"

// Organization is an owning principal identified by a short mnemonic code.
type Organization struct {
	ID        GeneratedID
	Mnemonic  string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserProfile is an owning principal identified by a username. Tokens is
// populated only on the organization-membership read path, where the member's
// own token set participates in the authorization decision.
type UserProfile struct {
	ID        GeneratedID
	Username  string
	Email     string
	Tokens    []AuthToken
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AuthToken is an opaque secret owned by exactly one user. The lookup key
// equals the secret itself; lifecycle is managed by an external identity
// subsystem and this core only reads it.
type AuthToken struct {
	Key  string
	User *UserProfile
}

// Principal is the owner a write targets: exactly one of Organization or
// UserProfile.
type Principal interface {
	isPrincipal()
}

func (*Organization) isPrincipal() {}
func (*UserProfile) isPrincipal()  {}

// Source is a persisted terminology resource (a FHIR CodeSystem). Within an
// owner's scope it is uniquely addressed by (Mnemonic, Version) and by
// (CanonicalURL, Version).
type Source struct {
	ID              GeneratedID
	Mnemonic        string
	Version         string
	CanonicalURL    string
	Name            string
	FullName        string
	DefaultLocale   string
	URI             string
	PublicAccess    string
	IsActive        bool
	Released        bool
	Retired         bool
	IsLatestVersion bool
	Extras          string

	// Raw JSON fragments lifted from the external representation.
	Identifier   string
	Contact      string
	Jurisdiction string

	OrganizationID GeneratedID
	UserID         GeneratedID
	CreatedByID    GeneratedID
	UpdatedByID    GeneratedID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Concept is a node belonging to exactly one source. Names and Descriptions
// hold the localized texts collected from the external representation; nil
// entries are skipped at insert time.
type Concept struct {
	ID              GeneratedID
	Mnemonic        string
	Version         string
	Name            string
	FullName        string
	DefaultLocale   string
	ConceptClass    string
	Datatype        string
	Comment         string
	PublicAccess    string
	IsActive        bool
	Released        bool
	Retired         bool
	IsLatestVersion bool
	Extras          string
	URI             string

	CreatedByID GeneratedID
	UpdatedByID GeneratedID

	// Parent carries the owning source; concept rows inherit the parent's
	// created_at/updated_at at insert time.
	Parent *Source

	Names        []*LocalizedText
	Descriptions []*LocalizedText
}

// LocalizedText is a name or description fragment. It is stored independently
// of its concept; ownership is expressed through a link row created after both
// endpoints have durable generated ids.
type LocalizedText struct {
	ID              GeneratedID
	Name            string
	Type            string
	Locale          string
	LocalePreferred bool
	CreatedAt       time.Time
}
