package types

import "time"

// Platform groups projects. Created/destroyed by admins.
type Platform struct {
	ID               string
	Name             string
	Description      string
	IsRestricted     bool
	IsOfflineSandbox bool // at most one per store; filtered from list_children unless requested
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Project is "unassigned" when PlatformID is empty.
type Project struct {
	ID           string
	Name         string
	PlatformID   string
	IsRestricted bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Folder forms a tree inside a project.
type Folder struct {
	ID             string
	Name           string
	ProjectID      string
	ParentFolderID string
	CreatedAt      time.Time
}

// FileFormat enumerates the supported boundary formats. Codecs for these
// formats are an external collaborator — the server only tracks which
// format a file claims to be.
type FileFormat string

const (
	FileFormatTXT  FileFormat = "txt"
	FileFormatTSV  FileFormat = "tsv"
	FileFormatXLSX FileFormat = "xlsx"
	FileFormatXLS  FileFormat = "xls"
	FileFormatXML  FileFormat = "xml"
	FileFormatTMX  FileFormat = "tmx"
)

// File is an ordered collection of Rows living in exactly one project and
// optionally one folder.
type File struct {
	ID        string
	Name      string
	ProjectID string
	FolderID  string
	Format    FileFormat
	RowCount  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RowStatus tracks translation progress for a single row.
type RowStatus string

const (
	RowStatusPending    RowStatus = "pending"
	RowStatusTranslated RowStatus = "translated"
	RowStatusReviewed   RowStatus = "reviewed"
	RowStatusApproved   RowStatus = "approved"
)

// Row is a single translatable string. Index is 1-based and dense within a
// file; StringID is kept as opaque text so large numeric identifiers never
// pass through a numeric type and lose precision. Version is a monotonic
// counter bumped by the store on every write, independent of wall-clock
// time; the sync engine's delta pull uses it alongside UpdatedAt to ask
// "what changed since I last looked."
//
// SyncRemoteVersion and SyncLocalVersion exist only on rows living in an
// offline sandbox store: SyncRemoteVersion records the central row's
// Version this copy last reflected, and SyncLocalVersion records this
// row's own Version immediately after that landing. A row whose Version
// has since moved past SyncLocalVersion was edited offline; code that
// writes a row edit (rather than landing a sync update) must carry both
// fields forward unchanged from the row it read, or conflict detection on
// the next delta pull silently stops working.
type Row struct {
	ID                string
	FileID            string
	Index             int
	Source            string
	Target            string
	Status            RowStatus
	StringID          string
	Metadata          map[string]string
	Version           uint64
	UpdatedAt         time.Time
	SyncRemoteVersion uint64
	SyncLocalVersion  uint64
}

// TM is a named collection of source/target pairs with an associated
// persistent vector index.
type TM struct {
	ID          string
	Name        string
	ProjectID   string // empty: TM is global, not scoped to a project
	SourceLang  string
	TargetLang  string
	Description string
	EntryCount  int
	IsActive    bool
	CreatedAt   time.Time
}

// TMEntry is one normalized source/target pair inside a TM. SourceHash is
// unique per TM; re-importing the same normalized source upserts Target.
type TMEntry struct {
	TMID             string
	EntryID          string
	Source           string
	Target           string
	NormalizedSource string
	SourceHash       string
}

// TMIndexMeta describes the persistent vector index associated 1:1 with a
// TM. The vectors themselves live in the index file on disk, not in this
// struct — see pkg/tm/index.go.
type TMIndexMeta struct {
	TMID      string
	ModelID   string
	Dim       int
	Count     int
	UpdatedAt time.Time
}

// CascadeTier names one step of the TM lookup cascade, in the order they
// are tried.
type CascadeTier string

const (
	TierExact           CascadeTier = "exact"
	TierCaseInsensitive CascadeTier = "case_insensitive"
	TierFuzzyChar       CascadeTier = "fuzzy_char"
	TierSemanticFast    CascadeTier = "semantic_fast"
	TierSemanticDeep    CascadeTier = "semantic_deep"
)

// CascadeMatch is one candidate returned by a TM lookup, annotated with the
// tier that produced it so callers can display and log provenance.
type CascadeMatch struct {
	EntryID string
	Source  string
	Target  string
	Score   float64
	Tier    CascadeTier
}

// OperationState is the lifecycle state of a tracked background job.
type OperationState string

const (
	OperationPending   OperationState = "pending"
	OperationRunning   OperationState = "running"
	OperationCompleted OperationState = "completed"
	OperationFailed    OperationState = "failed"
	OperationCancelled OperationState = "cancelled"
)

// OperationClass groups operations sharing a concurrency cap and default
// timeout.
type OperationClass string

const (
	ClassIndexing       OperationClass = "indexing"
	ClassPretranslation OperationClass = "pretranslation"
	ClassUpload         OperationClass = "upload"
	ClassBulkEdit       OperationClass = "bulk_edit"
)

// Operation is a tracked, cancellable, progress-reported background job.
type Operation struct {
	OpID        string
	UserID      string
	Tool        string
	Function    string
	DisplayName string
	Class       OperationClass
	State       OperationState
	Progress    int // 0-100, monotonic non-decreasing until terminal
	StepText    string
	StartedAt   time.Time
	CompletedAt time.Time
	FileInfo    map[string]string
	Error       string
	Result      map[string]string
	Seq         uint64 // sequence number of the last published update
}

// TrashItemType enumerates the kinds of entity that can be soft-deleted.
type TrashItemType string

const (
	TrashPlatform TrashItemType = "platform"
	TrashProject  TrashItemType = "project"
	TrashFolder   TrashItemType = "folder"
	TrashFile     TrashItemType = "file"
)

// TrashItem is a soft-delete record; a background sweeper permanently
// removes items past ExpiresAt.
type TrashItem struct {
	TrashID         string
	ItemType        TrashItemType
	ItemID          string
	ItemName        string
	ParentProjectID string
	ParentFolderID  string
	// Payload is an opaque snapshot of the deleted subtree (JSON-encoded),
	// sufficient to restore without re-reading from the live tree.
	Payload   []byte
	DeletedAt time.Time
	ExpiresAt time.Time
}

// Session ties a connected user/machine to sync and progress routing.
type Session struct {
	SessionID     string
	UserID        string
	MachineID     string
	ActiveTMID    string // per-session active TM
	CreatedAt     time.Time
	LastHeartbeat time.Time
}

// SyncItemType enumerates what a SyncSubscription can pin.
type SyncItemType string

const (
	SyncItemPlatform SyncItemType = "platform"
	SyncItemProject  SyncItemType = "project"
	SyncItemFile     SyncItemType = "file"
	SyncItemTM       SyncItemType = "tm"
)

// SyncSubscription marks content a user wants mirrored to their local
// store.
type SyncSubscription struct {
	SubscriptionID string
	UserID         string
	ItemType       SyncItemType
	ItemID         string
	SubscribedAt   time.Time
	LastSyncedAt   time.Time
}

// Role is the coarse permission level of a Principal.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleTranslator Role = "translator"
	RoleViewer     Role = "viewer"
)

// Principal is the authenticated caller, resolved once per request and
// threaded through every repository/engine call.
type Principal struct {
	UserID    string
	Role      Role
	MachineID string
	// Scopes restricts which platform/project ids the principal may act on;
	// an empty slice means "no restriction beyond Role".
	Scopes []string
}

// AuditEvent is an append-only, security-relevant record.
type AuditEvent struct {
	Seq       uint64
	Timestamp time.Time
	Kind      string
	Principal string
	IP        string
	Detail    map[string]string
}
