package gmail

type MessageID string
type ThreadID string
type LabelID string

// LabelUnread is the system label Gmail uses for the unread flag.
const LabelUnread LabelID = "UNREAD"

// MessageRef is the id pair returned by a list query.
type MessageRef struct {
	ID       MessageID
	ThreadID ThreadID
}

// ListPage is one page of a message list query.
type ListPage struct {
	Messages []MessageRef
	// NextPageToken is reported by the API but the harvest loop never
	// follows it: marking a page read removes it from an is:unread query, so
	// each iteration re-lists from the start.
	NextPageToken string
}

// Part is the subset of a MIME part we need to find a body.
type Part struct {
	MimeType string
	Data     string // base64url body data, empty for containers
	Parts    []Part
}

// Message is a fully fetched message.
type Message struct {
	ID       MessageID
	ThreadID ThreadID
	Payload  Part
}

type ModifyOps struct {
	AddLabels    []LabelID
	RemoveLabels []LabelID
}

type Query struct {
	Raw string // Gmail query string, e.g. `label:udemy-notifications is:unread`
}
