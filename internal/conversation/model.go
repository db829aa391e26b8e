package conversation

import (
	"errors"
	"time"
)

// Conversation states.
const (
	StateActive   = "active"
	StatePaused   = "paused"
	StateArchived = "archived"
)

// Message roles. Agent covers both AI and human replies.
const (
	RoleCustomer = "customer"
	RoleAgent    = "agent"
)

// Fixed replies. Customers only ever see normal AI output or one of
// these sentences; raw errors never reach them.
const (
	// handOffReply is the canonical hand-off sentence, persisted verbatim
	// when a customer asks for a human.
	handOffReply = "Thanks! A member of our team will take over this chat and reply to you shortly. شكراً لك، سيتولى أحد أعضاء فريقنا هذه المحادثة وسيرد عليك قريباً."

	// failureReply is returned after every completion attempt has failed.
	failureReply = "Sorry - I'm having trouble responding right now. Please try again in a few minutes. عذراً، أواجه صعوبة في الرد حالياً، يرجى المحاولة مرة أخرى بعد قليل."

	// emptyReply substitutes for a blank completion so an empty agent
	// message is never persisted.
	emptyReply = "Sorry - I didn't manage to put together a reply. Could you rephrase that? عذراً، لم أتمكن من صياغة رد، هل يمكنك إعادة صياغة رسالتك؟"

	// pausedNotice and resumedNotice are appended when an operator
	// pauses or resumes AI handling.
	pausedNotice  = "You're now chatting with a member of our team. أنت الآن تتحدث مع أحد أعضاء فريقنا."
	resumedNotice = "Our assistant is back and ready to help. عاد مساعدنا وهو جاهز لمساعدتك."
)

var (
	// ErrConversationNotFound indicates the id does not exist for the shop.
	ErrConversationNotFound = errors.New("conversation: not found")

	// ErrConversationPaused rejects dashboard sends while a human owns the thread.
	ErrConversationPaused = errors.New("conversation: paused for human takeover")

	// ErrConversationArchived rejects dashboard sends into a closed thread.
	ErrConversationArchived = errors.New("conversation: archived")

	// ErrEmptyMessage rejects blank input on the dashboard path.
	ErrEmptyMessage = errors.New("conversation: message text is empty")
)

// Conversation is one customer's dialogue thread with a shop. The current
// thread for a (shop, external customer) pair is the most recently created
// non-archived one.
type Conversation struct {
	ID                 string    `json:"id"`
	ShopID             string    `json:"shop_id"`
	Channel            string    `json:"channel"`
	ExternalCustomerID string    `json:"external_customer_id"`
	CustomerName       string    `json:"customer_name,omitempty"`
	State              string    `json:"state"`
	PausedForHuman     bool      `json:"paused_for_human"`
	LastActivityAt     time.Time `json:"last_activity_at"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// StoredMessage is one persisted turn. Immutable once written.
type StoredMessage struct {
	ID                string    `json:"id"`
	ConversationID    string    `json:"conversation_id"`
	Role              string    `json:"role"`
	Content           string    `json:"content"`
	Channel           string    `json:"channel"`
	ProviderMessageID string    `json:"provider_message_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}
