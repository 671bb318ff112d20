package domain

import "time"

// Assignment status values.
const (
	AssignmentActive = "active"
	AssignmentEnded  = "ended"
)

// Chat message sender roles within a coaching pair.
const (
	ChatRoleClient = "client"
	ChatRoleCoach  = "coach"
)

// Chatbot message roles.
const (
	BotRoleUser      = "user"
	BotRoleAssistant = "assistant"
)

// CoachProfile is the coaching-side record of a principal whose role is coach.
// ActiveClients is a derived count over active Assignments and is only ever
// moved by guarded updates inside the assignment transaction, so it can never
// drift past MaxClients.
//
// Fields:
//   - CoachID: the coach principal id (primary key).
//   - DisplayName: shown in the coach picker.
//   - IsAvailable: coach-controlled flag; false hides the coach from selection
//     but never blocks messaging with already-assigned clients. The column
//     carries no default tag: GORM omits zero-valued fields that have one,
//     which would flip an inserted false back to true. Creation paths set
//     the flag explicitly.
//   - MaxClients: capacity limit (the server value governs; default 10).
//   - ActiveClients: invariant 0 <= ActiveClients <= MaxClients.
type CoachProfile struct {
	CoachID       string    `json:"coach_id"       gorm:"type:varchar(64);primaryKey"`
	DisplayName   string    `json:"display_name"   gorm:"type:varchar(255);not null;default:''"`
	IsAvailable   bool      `json:"is_available"   gorm:"not null"`
	MaxClients    int       `json:"max_clients"    gorm:"not null;default:10"`
	ActiveClients int       `json:"active_clients" gorm:"not null;default:0"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName returns the database table name for CoachProfile.
func (CoachProfile) TableName() string { return "coach_profiles" }

// HasCapacity reports whether the coach can take one more active client.
func (c CoachProfile) HasCapacity() bool { return c.ActiveClients < c.MaxClients }

// Assignment links a client to a coach. At most one Assignment per client may
// be active at any instant (single-coach rule); switching coaches ends the old
// row and inserts the new one in the same transaction.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - ClientID / CoachID: the two principals; both indexed.
//   - Status: "active" or "ended".
//   - AssignedAt: start of the cooldown window for the client.
//   - EndedAt: set when the assignment is superseded.
type Assignment struct {
	ID         string     `json:"id"          gorm:"type:char(36);primaryKey"`
	ClientID   string     `json:"client_id"   gorm:"type:varchar(64);not null;index:idx_assignments_client"`
	CoachID    string     `json:"coach_id"    gorm:"type:varchar(64);not null;index:idx_assignments_coach"`
	Status     string     `json:"status"      gorm:"type:varchar(16);not null;check:status IN ('active','ended');index"`
	AssignedAt time.Time  `json:"assigned_at" gorm:"not null"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Assignment.
func (Assignment) TableName() string { return "assignments" }

// ChatMessage is a single utterance in a client<->coach conversation.
// Rows are append-only: after insert the only mutable column is ReadAt.
//
// Exactly one of Body/attachment must be present; when both are set the body
// is the attachment caption. CreatedAt is strictly monotonic per PairKey
// (enforced at insert time), with ID as the tie-break in query ordering.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - PairKey: canonical {client, coach} key; indexed with CreatedAt for
//     keyset pagination.
//   - SenderID: the authoring principal; always a member of the pair.
//   - Role: "client" or "coach" (the sender's side of the pair).
//   - Body: optional text content or attachment caption.
//   - AttachmentKey / AttachmentMime / AttachmentBytes: opaque object-store
//     reference plus validated metadata.
//   - ReadAt: read receipt set by the counterparty; nil while unread.
type ChatMessage struct {
	ID              string     `json:"id"                 gorm:"type:char(36);primaryKey"`
	PairKey         string     `json:"pair_key"           gorm:"type:varchar(130);not null;index:idx_pair_msgs,priority:1"`
	SenderID        string     `json:"sender_id"          gorm:"type:varchar(64);not null"`
	Role            string     `json:"role"               gorm:"type:varchar(16);not null;check:role IN ('client','coach')"`
	Body            *string    `json:"body,omitempty"     gorm:"type:text"`
	AttachmentKey   *string    `json:"attachment_key,omitempty"  gorm:"type:varchar(255)"`
	AttachmentMime  *string    `json:"attachment_mime,omitempty" gorm:"type:varchar(128)"`
	AttachmentBytes *int64     `json:"attachment_bytes,omitempty"`
	CreatedAt       time.Time  `json:"created_at"         gorm:"not null;index:idx_pair_msgs,priority:2"`
	ReadAt          *time.Time `json:"read_at,omitempty"  gorm:"index"`
}

// TableName returns the database table name for ChatMessage.
func (ChatMessage) TableName() string { return "chat_messages" }

// HasAttachment reports whether the message carries an attachment reference.
func (m ChatMessage) HasAttachment() bool {
	return m.AttachmentKey != nil && *m.AttachmentKey != ""
}

// ChatbotMessage is one half of a turn in a user's rolling 24-hour AI-coach
// history. Rows are immutable and only visible while ExpiresAt > now; the
// read-time filter makes expiry exact even between sweep runs.
//
// The primary key is an autoincrement int64 so the assistant half of a turn,
// inserted after the user half with the same CreatedAt, always orders after
// it by id.
type ChatbotMessage struct {
	ID        int64     `json:"id"         gorm:"primaryKey;autoIncrement"`
	UserID    string    `json:"user_id"    gorm:"type:varchar(64);not null;index:idx_bot_user,priority:1"`
	Role      string    `json:"role"       gorm:"type:varchar(16);not null;check:role IN ('user','assistant')"`
	Content   string    `json:"content"    gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"not null"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null;index:idx_bot_user,priority:2;index:idx_bot_expiry"`
}

// TableName returns the database table name for ChatbotMessage.
func (ChatbotMessage) TableName() string { return "chatbot_messages" }

// VisibleAt reports whether the message is inside its visibility window at t.
func (m ChatbotMessage) VisibleAt(t time.Time) bool { return t.Before(m.ExpiresAt) }
