package domain

// Envelope is the JSON body WhatsApp Cloud API posts to the webhook.
type Envelope struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Field string      `json:"field"`
	Value ChangeValue `json:"value"`
}

type ChangeValue struct {
	MessagingProduct string        `json:"messaging_product"`
	Metadata         Metadata      `json:"metadata"`
	Contacts         []Contact     `json:"contacts,omitempty"`
	Messages         []WireMessage `json:"messages,omitempty"`
	Statuses         []WireStatus  `json:"statuses,omitempty"`
}

type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type Contact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

type WireMessage struct {
	From        string           `json:"from"`
	ID          string           `json:"id"`
	Timestamp   string           `json:"timestamp"`
	Type        string           `json:"type"`
	Text        *WireText        `json:"text,omitempty"`
	Image       *WireMedia       `json:"image,omitempty"`
	Audio       *WireMedia       `json:"audio,omitempty"`
	Voice       *WireMedia       `json:"voice,omitempty"`
	Document    *WireMedia       `json:"document,omitempty"`
	Reaction    *WireReaction    `json:"reaction,omitempty"`
	Interactive *WireInteractive `json:"interactive,omitempty"`
	Button      *WireButton      `json:"button,omitempty"`
}

type WireText struct {
	Body string `json:"body"`
}

type WireMedia struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	SHA256   string `json:"sha256,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

type WireReaction struct {
	MessageID string `json:"message_id"`
	Emoji     string `json:"emoji"`
}

type WireInteractive struct {
	Type        string `json:"type"`
	ButtonReply *struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"button_reply,omitempty"`
	ListReply *struct {
		ID          string `json:"id"`
		Title       string `json:"title"`
		Description string `json:"description,omitempty"`
	} `json:"list_reply,omitempty"`
}

type WireButton struct {
	Payload string `json:"payload"`
	Text    string `json:"text"`
}

type WireStatus struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	RecipientID string `json:"recipient_id"`
	Errors      []struct {
		Code  int    `json:"code"`
		Title string `json:"title"`
	} `json:"errors,omitempty"`
}

// InboundMessage is one customer message together with the contacts of the
// change it came in.
type InboundMessage struct {
	Message  WireMessage
	Contacts []Contact
}

// Messages flattens the customer messages of every entry and change.
func (e *Envelope) Messages() []InboundMessage {
	var out []InboundMessage
	for _, entry := range e.Entry {
		for _, change := range entry.Changes {
			for _, m := range change.Value.Messages {
				out = append(out, InboundMessage{Message: m, Contacts: change.Value.Contacts})
			}
		}
	}
	return out
}

// Statuses flattens all status updates of the envelope.
func (e *Envelope) Statuses() []WireStatus {
	var out []WireStatus
	for _, entry := range e.Entry {
		for _, change := range entry.Changes {
			out = append(out, change.Value.Statuses...)
		}
	}
	return out
}
