package instagram

// WebhookEvent is the top-level structure received from Meta's webhook.
type WebhookEvent struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry represents a single entry in the webhook payload. ID is the
// Instagram business account receiving the messages.
type Entry struct {
	ID        string      `json:"id"`
	Time      int64       `json:"time"`
	Messaging []Messaging `json:"messaging"`
}

// Messaging represents a single messaging event.
type Messaging struct {
	Sender    Party     `json:"sender"`
	Recipient Party     `json:"recipient"`
	Timestamp int64     `json:"timestamp"`
	Message   *Message  `json:"message,omitempty"`
	Postback  *Postback `json:"postback,omitempty"`
}

// Party identifies one side of a messaging event.
type Party struct {
	ID string `json:"id"`
}

// Message contains the message content.
type Message struct {
	MID  string `json:"mid"`
	Text string `json:"text"`
}

// Postback represents a button tap; normalized as its title text.
type Postback struct {
	Title   string `json:"title"`
	Payload string `json:"payload"`
}

// SendRequest is the payload sent to the Graph API to send a DM.
type SendRequest struct {
	Recipient Party       `json:"recipient"`
	Message   SendMessage `json:"message"`
}

// SendMessage is the outbound message content.
type SendMessage struct {
	Text string `json:"text"`
}

// SendResponse is the Graph API response after sending a message.
type SendResponse struct {
	RecipientID string     `json:"recipient_id"`
	MessageID   string     `json:"message_id"`
	Error       *SendError `json:"error,omitempty"`
}

// SendError represents an error returned by the Graph API.
type SendError struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	Code      int    `json:"code"`
	FBTraceID string `json:"fbtrace_id"`
}
