package session

// Kind discriminates the broadcast message variants.
type Kind int

const (
	KindText Kind = iota + 1
	KindPhoto
	KindVideo
	KindDocument
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindPhoto:
		return "photo"
	case KindVideo:
		return "video"
	case KindDocument:
		return "document"
	}
	return "unknown"
}

// Message is one captured broadcast message. It is a tagged variant:
// exactly the fields for its Kind are meaningful. Immutable once captured.
type Message struct {
	Kind Kind

	// Body is the text content (KindText only).
	Body string

	// FileID references uploaded media (photo/video/document kinds).
	FileID  string
	Caption string
}

func Text(body string) Message { return Message{Kind: KindText, Body: body} }

func Photo(fileID, caption string) Message {
	return Message{Kind: KindPhoto, FileID: fileID, Caption: caption}
}

func Video(fileID, caption string) Message {
	return Message{Kind: KindVideo, FileID: fileID, Caption: caption}
}

func Document(fileID, caption string) Message {
	return Message{Kind: KindDocument, FileID: fileID, Caption: caption}
}
