package domain

import "unicode/utf8"

const (
	MaxIDLen          = 100
	MaxTextLen        = 10000
	MaxAttachments    = 10
	MaxMentions       = 5
	MaxEmojiPerMsg    = 12
	MaxSenderNameLen  = 200
	MaxSnippetLen     = 300
	MaxAttachmentURL  = 2048
	MaxEditHistoryCap = 50
)

// AllowedEmoji is the fixed reaction allow-list. Arbitrary Unicode is
// rejected before any store access.
var AllowedEmoji = map[string]bool{
	"👍": true, "👎": true, "❤️": true, "😂": true,
	"😮": true, "😢": true, "😡": true, "🙏": true,
	"🔥": true, "🎉": true, "👏": true, "💯": true,
	"🤔": true, "👀": true, "✅": true, "⭐": true,
}

func validID(s string) bool {
	return s != "" && len(s) <= MaxIDLen
}

func invalid(msg string) *Error {
	return &Error{Code: CodeInvalidArgument, Reason: ReasonInvalidShape, Err: errShape(msg)}
}

type errShape string

func (e errShape) Error() string { return string(e) }

// ValidateSend checks field shape only; membership and policy come later.
func ValidateSend(convID string, scope Scope, kind MessageKind, text string, attachments []Attachment, mentions []string, clientID, messageID string) error {
	if !validID(convID) {
		return invalid("conversation_id")
	}
	if !validID(messageID) {
		return invalid("message_id")
	}
	if !validID(clientID) {
		return invalid("client_id")
	}
	if scope != ScopeDM && scope != ScopeGroup {
		return invalid("scope")
	}
	switch kind {
	case KindText:
		if text == "" {
			return invalid("text required for text kind")
		}
		if len(attachments) > 0 {
			return invalid("attachments not allowed for text kind")
		}
	case KindMedia, KindVoice, KindFile:
		if len(attachments) == 0 {
			return invalid("attachments required")
		}
		if text != "" {
			return invalid("text not allowed for " + string(kind) + " kind")
		}
	case KindSystem:
		if text != "" {
			return invalid("text not allowed for system kind")
		}
		if len(attachments) > 0 {
			return invalid("attachments not allowed for system kind")
		}
	default:
		return invalid("kind")
	}
	if !utf8.ValidString(text) || len(text) > MaxTextLen {
		return invalid("text")
	}
	if len(attachments) > MaxAttachments {
		return invalid("too many attachments")
	}
	for _, a := range attachments {
		if a.URL == "" || len(a.URL) > MaxAttachmentURL {
			return invalid("attachment url")
		}
	}
	if len(mentions) > MaxMentions {
		return invalid("too many mentions")
	}
	for _, m := range mentions {
		if !validID(m) {
			return invalid("mention uid")
		}
	}
	return nil
}

func ValidateEdit(convID, messageID, newText string) error {
	if !validID(convID) || !validID(messageID) {
		return invalid("id")
	}
	if newText == "" || !utf8.ValidString(newText) || len(newText) > MaxTextLen {
		return invalid("text")
	}
	return nil
}

func ValidateMessageRef(convID, messageID string) error {
	if !validID(convID) || !validID(messageID) {
		return invalid("id")
	}
	return nil
}

func ValidateEmoji(emoji string) error {
	if !AllowedEmoji[emoji] {
		return &Error{Code: CodeInvalidArgument, Reason: ReasonDisallowedEmoji}
	}
	return nil
}

// Snippet truncates text for previews and reply snapshots.
func Snippet(text string, max int) string {
	if len(text) <= max {
		return text
	}
	// cut on a rune boundary
	for max > 0 && !utf8.RuneStart(text[max]) {
		max--
	}
	return text[:max]
}
