package kinds

// Candidate is an extension produced by a source adapter, not yet committed
// to any Scope. It is ephemeral: it lives for the duration of one
// invocation and is never itself persisted.
type Candidate struct {
	SourcePath      string
	Kind            Kind
	LogicalName     string
	DeclaredVersion string
	ContentHash     string
	Metadata        map[string]any

	// Body is the raw byte content as read from the source; ContentHash is
	// computed over its normalized form. It is kept in memory so validators
	// and plan building (hook and MCP server bodies go straight into the
	// preferences patch) don't re-read the filesystem.
	Body []byte

	// Components is populated only for Kind == KindPlugin: the
	// manifest-declared child candidates this plugin owns.
	Components []Candidate
}

// Origin records where an Installed Record came from.
type Origin string

const (
	OriginLocal  Origin = "local"
	OriginGit    Origin = "git"
	OriginURL    Origin = "url"
	OriginPlugin Origin = "plugin"
)

// InstalledRecord is the authoritative description of an extension present
// in a Scope. It must agree with both the structured-config store and the
// file(s) on disk at all times (spec invariant 1).
type InstalledRecord struct {
	Kind        Kind   `json:"-"`
	LogicalName string `json:"-"`
	Scope       Scope  `json:"-"`

	InstallPath string `json:"installPath"`
	Origin      Origin `json:"origin"`
	// OriginRef is stored verbatim as supplied by the caller and treated
	// as opaque — it is never parsed as a branch/commit/tag (spec §9,
	// third open question).
	OriginRef   string `json:"originRef,omitempty"`
	ContentHash string `json:"-"` // stored in the hashes sidecar, not inline
	InstalledAt string `json:"installedAt"`
	Version     string `json:"version,omitempty"`
}

// Key identifies an Installed Record within a Scope. Invariant 2 requires
// this pair be unique per Scope.
type Key struct {
	Kind        Kind
	LogicalName string
}
