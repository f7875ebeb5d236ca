package message

import (
	"strings"
)

const attachmentPrefix = "[secure_image]"

// Attachment references a sealed file held in a BlobStore.
type Attachment struct {
	URL     string
	Key     string
	Caption string
}

// String formats a as message text.
func (a Attachment) String() string {
	return attachmentPrefix + a.URL + "|" + a.Key + "|" + a.Caption
}

// ParseAttachment extracts an attachment reference from decrypted text. The
// caption may itself contain '|'.
func ParseAttachment(text string) (Attachment, bool) {
	rest, ok := strings.CutPrefix(text, attachmentPrefix)
	if !ok {
		return Attachment{}, false
	}
	parts := strings.SplitN(rest, "|", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return Attachment{}, false
	}
	a := Attachment{URL: parts[0], Key: parts[1]}
	if len(parts) == 3 {
		a.Caption = parts[2]
	}
	return a, true
}
