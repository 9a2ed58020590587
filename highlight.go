package marginalia

import "time"

// Comment is the note attached to a highlight.
type Comment struct {
	UserName string `json:"userName" yaml:"user"`
	Text     string `json:"text" yaml:"text"`
}

// Highlight annotates a range of one document's text.
// A highlight without a comment marks text but never gets a card.
type Highlight struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"documentId"`
	Range      TextRange `json:"range"`
	Comment    *Comment  `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// HasComment reports whether the highlight carries a comment.
func (h Highlight) HasComment() bool {
	return h.Comment != nil
}

// clone returns a copy that shares no pointers with h.
func (h Highlight) clone() Highlight {
	if h.Comment != nil {
		c := *h.Comment
		h.Comment = &c
	}
	return h
}
