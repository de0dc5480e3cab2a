package store

import "time"

// Identity is a hosted or formerly-hosted profile, keyed by IdentityId.
// Row semantics: ExpirationDate == nil means the contract is
// active and the row counts toward MaxHostedIdentities; a non-nil
// ExpirationDate marks a cancelled contract pending sweep.
type Identity struct {
	IdentityID  string `gorm:"primaryKey;size:64"`
	PublicKey   []byte `gorm:"size:32;not null"`
	VersionMaj  uint8
	VersionMin  uint8
	VersionPat  uint8
	Name        string `gorm:"size:64"`
	Type        string `gorm:"size:64;index"`
	HasLocation bool
	LatitudeE6  int64 `gorm:"index"` // micro-degrees, pre-scaled for integer bounding-box queries
	LongitudeE6 int64 `gorm:"index"`
	ExtraData   string `gorm:"type:text"`

	ProfileImageToken   *string `gorm:"size:36"`
	ThumbnailImageToken *string `gorm:"size:36"`

	// HomeNodeID is empty while hosted here. Once CancelHosting sets a
	// redirect, it holds the 32-byte identifier of the new home node.
	HomeNodeID string `gorm:"size:64"`

	ExpirationDate *time.Time `gorm:"index"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName pins the table name so renaming the Go type never migrates data.
func (Identity) TableName() string { return "identities" }

// Initialized reports whether the identity has completed its first
// UpdateProfile (Version != 0.0.0).
func (i *Identity) Initialized() bool {
	return i.VersionMaj != 0 || i.VersionMin != 0 || i.VersionPat != 0
}

// Hosted reports whether this row currently counts as hosted at this node.
func (i *Identity) Hosted() bool {
	return i.ExpirationDate == nil
}

// NeighborIdentity mirrors an Identity hosted at a peer node, written only
// by the directory-push path. Same shape as Identity
// but HomeNodeID is always set.
type NeighborIdentity struct {
	IdentityID  string `gorm:"primaryKey;size:64"`
	PublicKey   []byte `gorm:"size:32"`
	VersionMaj  uint8
	VersionMin  uint8
	VersionPat  uint8
	Name        string `gorm:"size:64"`
	Type        string `gorm:"size:64;index"`
	HasLocation bool
	LatitudeE6  int64 `gorm:"index"`
	LongitudeE6 int64 `gorm:"index"`
	ExtraData   string `gorm:"type:text"`

	ProfileImageToken   *string `gorm:"size:36"`
	ThumbnailImageToken *string `gorm:"size:36"`

	HomeNodeID string `gorm:"size:64;not null;index"`

	UpdatedAt time.Time
}

func (NeighborIdentity) TableName() string { return "neighbor_identities" }

// RelatedIdentity is a signed relationship card, composite-keyed by
// IdentityID + ApplicationID.
type RelatedIdentity struct {
	IdentityID    string `gorm:"primaryKey;size:64"`
	ApplicationID string `gorm:"primaryKey;size:64"`

	CardID            string `gorm:"size:64;not null"`
	IssuerPublicKey   []byte `gorm:"size:32;not null"`
	IssuerSignature   []byte `gorm:"size:64;not null"`
	RecipientPublicKey []byte `gorm:"size:32;not null"`
	RecipientSignature []byte `gorm:"size:64;not null"`
	Type              string `gorm:"size:64"`
	ValidFrom         time.Time
	ValidTo           time.Time

	CreatedAt time.Time
}

func (RelatedIdentity) TableName() string { return "related_identities" }

// FollowerNode is bookkeeping-only: a peer that has registered interest in
// this node's neighborhood notifications, written through UpsertFollower
// (the directory client does not write these rows). It is never an
// authorization source.
type FollowerNode struct {
	NodeID     string `gorm:"primaryKey;size:64"`
	Address    string `gorm:"size:255;not null"`
	Port       int
	LastSeenAt time.Time
}

func (FollowerNode) TableName() string { return "follower_nodes" }

// AllModels lists every gorm-managed type for AutoMigrate.
func AllModels() []any {
	return []any{
		&Identity{},
		&NeighborIdentity{},
		&RelatedIdentity{},
		&FollowerNode{},
	}
}
