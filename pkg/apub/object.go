package apub

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
)

// Attachment classification by declared media type prefix.
const (
	AttachmentImage   = "image"
	AttachmentVideo   = "video"
	AttachmentUnknown = "unknown"
)

var ErrUnparsableObject = errors.New("apub: unparsable object")

// contentTypes are the object types treated as content rather than
// profiles.
var contentTypes = map[string]bool{
	"Note":     true,
	"Article":  true,
	"Page":     true,
	"Question": true,
	"Video":    true,
	"Image":    true,
}

var stripPolicy = bluemonday.StrictPolicy()

// Attachment is one normalized media reference.
type Attachment struct {
	URL       string
	MediaType string
	Kind      string
}

// Note is the single normalized representation of a remote content
// object, whatever platform convention it arrived in.
type Note struct {
	ID           string
	Type         string
	AttributedTo string
	ContentHTML  string
	ContentText  string
	Attachments  []Attachment
	Published    time.Time
}

// IsContentType reports whether a raw object type is a content kind the
// mirror knows how to store.
func IsContentType(typ string) bool {
	return contentTypes[typ]
}

// publishedLayouts are tried in order; remote platforms disagree on the
// exact flavor.
var publishedLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05-0700",
	time.RFC1123,
}

// ParseObject normalizes a raw federated object into a Note. It fails
// closed: a missing id, an unparseable publication date, an invalid
// embedded URL, or the absence of both content and attachments all
// return ErrUnparsableObject.
func ParseObject(raw json.RawMessage) (*Note, error) {
	var src struct {
		ID           string            `json:"id"`
		Type         string            `json:"type"`
		Content      string            `json:"content"`
		ContentMap   map[string]string `json:"contentMap"`
		Name         string            `json:"name"`
		Published    string            `json:"published"`
		AttributedTo json.RawMessage   `json:"attributedTo"`
		Attachment   json.RawMessage   `json:"attachment"`
	}

	if err := json.Unmarshal(raw, &src); err != nil {
		return nil, errors.Join(ErrUnparsableObject, err)
	}
	if src.ID == "" {
		return nil, fmt.Errorf("%w: missing id", ErrUnparsableObject)
	}

	published, err := parsePublished(src.Published)
	if err != nil {
		return nil, err
	}

	attachments, err := parseAttachments(src.Attachment)
	if err != nil {
		return nil, err
	}

	contentHTML := pickContent(src.Content, src.ContentMap, src.Name)
	if contentHTML == "" && len(attachments) == 0 {
		return nil, fmt.Errorf("%w: no content and no attachments", ErrUnparsableObject)
	}

	return &Note{
		ID:           src.ID,
		Type:         src.Type,
		AttributedTo: iriOf(src.AttributedTo),
		ContentHTML:  contentHTML,
		ContentText:  StripHTML(contentHTML),
		Attachments:  attachments,
		Published:    published,
	}, nil
}

// pickContent resolves the platform-dependent content shapes: direct
// HTML wins, then a language-keyed content map, then a bare name.
func pickContent(content string, contentMap map[string]string, name string) string {
	if content != "" {
		return content
	}

	if len(contentMap) > 0 {
		if c, ok := contentMap["en"]; ok && c != "" {
			return c
		}
		keys := make([]string, 0, len(contentMap))
		for k := range contentMap {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if contentMap[k] != "" {
				return contentMap[k]
			}
		}
	}

	return name
}

func parsePublished(published string) (time.Time, error) {
	if published == "" {
		return time.Time{}, fmt.Errorf("%w: missing published date", ErrUnparsableObject)
	}
	for _, layout := range publishedLayouts {
		if t, err := time.Parse(layout, published); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unparseable published date %q", ErrUnparsableObject, published)
}

// parseAttachments accepts a single attachment object or an array of
// them.
func parseAttachments(raw json.RawMessage) ([]Attachment, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	type wireAttachment struct {
		URL       string `json:"url"`
		Href      string `json:"href"`
		MediaType string `json:"mediaType"`
	}

	var wire []wireAttachment
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &wire); err != nil {
			return nil, errors.Join(ErrUnparsableObject, err)
		}
	} else {
		var one wireAttachment
		if err := json.Unmarshal(raw, &one); err != nil {
			return nil, errors.Join(ErrUnparsableObject, err)
		}
		wire = append(wire, one)
	}

	attachments := make([]Attachment, 0, len(wire))
	for _, w := range wire {
		u := w.URL
		if u == "" {
			u = w.Href
		}
		if u == "" {
			continue
		}
		if !IsAbsoluteURL(u) {
			return nil, fmt.Errorf("%w: attachment url %q is not absolute", ErrUnparsableObject, u)
		}
		attachments = append(attachments, Attachment{
			URL:       u,
			MediaType: w.MediaType,
			Kind:      classifyMediaType(w.MediaType),
		})
	}
	return attachments, nil
}

func classifyMediaType(mediaType string) string {
	switch {
	case strings.HasPrefix(mediaType, "image/"):
		return AttachmentImage
	case strings.HasPrefix(mediaType, "video/"):
		return AttachmentVideo
	default:
		return AttachmentUnknown
	}
}

// StripHTML projects remote HTML content to plain text: tags dropped,
// basic entities decoded, whitespace collapsed.
func StripHTML(s string) string {
	if s == "" {
		return ""
	}
	stripped := html.UnescapeString(stripPolicy.Sanitize(s))
	return strings.Join(strings.Fields(stripped), " ")
}

// IsAbsoluteURL reports whether s is a well-formed absolute http(s) URL.
func IsAbsoluteURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
