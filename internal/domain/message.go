package domain

import "time"

type Scope string

const (
	ScopeDM    Scope = "dm"
	ScopeGroup Scope = "group"
)

type MessageKind string

const (
	KindText   MessageKind = "text"
	KindMedia  MessageKind = "media"
	KindVoice  MessageKind = "voice"
	KindFile   MessageKind = "file"
	KindSystem MessageKind = "system"
)

type Role string

const (
	RoleOwner     Role = "owner"
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
	RoleMember    Role = "member"
	RoleNone      Role = "none"
)

// CanModerate reports whether the role may delete other members' messages.
func (r Role) CanModerate() bool {
	return r == RoleOwner || r == RoleAdmin || r == RoleModerator
}

// DeletedPlaceholder replaces message text when a message is deleted for all.
const DeletedPlaceholder = "This message was deleted"

type Attachment struct {
	URL       string `bson:"url" json:"url"`
	MimeType  string `bson:"mime_type" json:"mime_type"`
	SizeBytes int64  `bson:"size_bytes,omitempty" json:"size_bytes,omitempty"`
	Thumbnail string `bson:"thumbnail,omitempty" json:"thumbnail,omitempty"`
}

// ReplyRef is a point-in-time snapshot of the replied-to message, never
// re-synced after capture.
type ReplyRef struct {
	MessageID         string      `bson:"message_id" json:"message_id"`
	SenderID          string      `bson:"sender_id" json:"sender_id"`
	SenderName        string      `bson:"sender_name,omitempty" json:"sender_name,omitempty"`
	Kind              MessageKind `bson:"kind" json:"kind"`
	TextSnippet       string      `bson:"text_snippet,omitempty" json:"text_snippet,omitempty"`
	AttachmentPreview string      `bson:"attachment_preview,omitempty" json:"attachment_preview,omitempty"`
}

type EditRecord struct {
	Text     string    `bson:"text" json:"text"`
	EditedAt time.Time `bson:"edited_at" json:"edited_at"`
	EditedBy string    `bson:"edited_by" json:"edited_by"`
}

type Deletion struct {
	By string    `bson:"by" json:"by"`
	At time.Time `bson:"at" json:"at"`
}

type Message struct {
	ID             string       `bson:"id" json:"id"`
	ConversationID string       `bson:"conversation_id" json:"conversation_id"`
	Scope          Scope        `bson:"scope" json:"scope"`
	Kind           MessageKind  `bson:"kind" json:"kind"`
	Text           string       `bson:"text,omitempty" json:"text,omitempty"`
	Attachments    []Attachment `bson:"attachments,omitempty" json:"attachments,omitempty"`

	SenderID     string `bson:"sender_id" json:"sender_id"`
	SenderName   string `bson:"sender_name,omitempty" json:"sender_name,omitempty"`
	SenderAvatar string `bson:"sender_avatar,omitempty" json:"sender_avatar,omitempty"`

	// CreatedAt is the client clock, advisory only. ServerReceivedAt is
	// assigned at commit and is authoritative for all window calculations.
	CreatedAt        time.Time `bson:"created_at" json:"created_at"`
	ServerReceivedAt time.Time `bson:"server_received_at" json:"server_received_at"`

	IdempotencyKey string    `bson:"idempotency_key,omitempty" json:"idempotency_key,omitempty"`
	ReplyTo        *ReplyRef `bson:"reply_to,omitempty" json:"reply_to,omitempty"`
	MentionUIDs    []string  `bson:"mention_uids,omitempty" json:"mention_uids,omitempty"`

	EditedAt    *time.Time   `bson:"edited_at,omitempty" json:"edited_at,omitempty"`
	EditHistory []EditRecord `bson:"edit_history,omitempty" json:"edit_history,omitempty"`
	DeletedAll  *Deletion    `bson:"deleted_all,omitempty" json:"deleted_all,omitempty"`

	ReadBy     []string `bson:"read_by,omitempty" json:"read_by,omitempty"`
	DeletedFor []string `bson:"deleted_for,omitempty" json:"deleted_for,omitempty"`

	// ReactionsSummary mirrors the reaction subdocuments: emoji -> count.
	ReactionsSummary map[string]int `bson:"reactions_summary,omitempty" json:"reactions_summary,omitempty"`
}

// Deleted reports whether the message was deleted for everyone. Deletion is
// terminal: content is scrubbed and the message becomes immutable.
func (m *Message) Deleted() bool { return m.DeletedAll != nil }

// Reaction is a per-emoji child of a message. It exists iff UIDs is non-empty.
type Reaction struct {
	ConversationID string    `bson:"conversation_id" json:"conversation_id"`
	MessageID      string    `bson:"message_id" json:"message_id"`
	Emoji          string    `bson:"emoji" json:"emoji"`
	UIDs           []string  `bson:"uids" json:"uids"`
	Count          int       `bson:"count" json:"count"`
	UpdatedAt      time.Time `bson:"updated_at" json:"updated_at"`
}

// Has reports whether uid already reacted.
func (r *Reaction) Has(uid string) bool {
	for _, u := range r.UIDs {
		if u == uid {
			return true
		}
	}
	return false
}

// RateWindow is the per (actor, action class) sliding-window counter.
type RateWindow struct {
	WindowStart time.Time `bson:"window_start" json:"window_start"`
	Count       int       `bson:"count" json:"count"`
}

type Conversation struct {
	ID          string          `bson:"_id" json:"id"`
	Scope       Scope           `bson:"scope" json:"scope"`
	Members     []string        `bson:"members,omitempty" json:"members,omitempty"` // dm: exactly two
	Name        string          `bson:"name,omitempty" json:"name,omitempty"`
	LastMessage *MessagePreview `bson:"last_message,omitempty" json:"last_message,omitempty"`
	UpdatedAt   time.Time       `bson:"updated_at" json:"updated_at"`
}

// MessagePreview is the denormalized "last message" snapshot kept on the
// conversation, updated best-effort after each create.
type MessagePreview struct {
	MessageID  string      `bson:"message_id" json:"message_id"`
	SenderID   string      `bson:"sender_id" json:"sender_id"`
	SenderName string      `bson:"sender_name,omitempty" json:"sender_name,omitempty"`
	Kind       MessageKind `bson:"kind" json:"kind"`
	Snippet    string      `bson:"snippet,omitempty" json:"snippet,omitempty"`
	SentAt     time.Time   `bson:"sent_at" json:"sent_at"`
}

type GroupMember struct {
	GroupID  string    `bson:"group_id" json:"group_id"`
	UID      string    `bson:"uid" json:"uid"`
	Role     Role      `bson:"role" json:"role"`
	JoinedAt time.Time `bson:"joined_at" json:"joined_at"`
}
