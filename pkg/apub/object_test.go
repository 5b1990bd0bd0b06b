package apub_test

import (
	"encoding/json"
	"errors"
	"testing"

	"skein/pkg/apub"
)

func TestParseObjectDirectContent(t *testing.T) {
	t.Parallel()

	note, err := apub.ParseObject(json.RawMessage(`{
		"id": "https://remote.example/objects/1",
		"type": "Note",
		"content": "<p>hello &amp; welcome</p>",
		"published": "2026-08-01T12:00:00Z",
		"attributedTo": "https://remote.example/users/alice"
	}`))
	if err != nil {
		t.Fatal(err)
	}

	if note.ID != "https://remote.example/objects/1" {
		t.Errorf("unexpected id: %s", note.ID)
	}
	if note.AttributedTo != "https://remote.example/users/alice" {
		t.Errorf("unexpected attributedTo: %s", note.AttributedTo)
	}
	if note.ContentText != "hello & welcome" {
		t.Errorf("unexpected plain text: %q", note.ContentText)
	}
	if note.Published.IsZero() {
		t.Error("published not parsed")
	}
}

func TestParseObjectContentMapFallback(t *testing.T) {
	t.Parallel()

	note, err := apub.ParseObject(json.RawMessage(`{
		"id": "https://remote.example/objects/2",
		"type": "Note",
		"contentMap": {"de": "hallo", "en": "hello"},
		"published": "2026-08-01T12:00:00Z"
	}`))
	if err != nil {
		t.Fatal(err)
	}
	if note.ContentText != "hello" {
		t.Errorf("english entry should win, got %q", note.ContentText)
	}
}

func TestParseObjectNameFallback(t *testing.T) {
	t.Parallel()

	note, err := apub.ParseObject(json.RawMessage(`{
		"id": "https://remote.example/objects/3",
		"type": "Video",
		"name": "a title",
		"published": "2026-08-01T12:00:00Z"
	}`))
	if err != nil {
		t.Fatal(err)
	}
	if note.ContentText != "a title" {
		t.Errorf("name should be the last fallback, got %q", note.ContentText)
	}
}

func TestParseObjectFailsClosed(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"missing id": `{
			"type": "Note",
			"content": "x",
			"published": "2026-08-01T12:00:00Z"
		}`,
		"missing published": `{
			"id": "https://remote.example/objects/4",
			"content": "x"
		}`,
		"garbage published": `{
			"id": "https://remote.example/objects/5",
			"content": "x",
			"published": "yesterday-ish"
		}`,
		"no content no attachments": `{
			"id": "https://remote.example/objects/6",
			"published": "2026-08-01T12:00:00Z"
		}`,
		"relative attachment url": `{
			"id": "https://remote.example/objects/7",
			"published": "2026-08-01T12:00:00Z",
			"attachment": {"url": "/media/1.png", "mediaType": "image/png"}
		}`,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := apub.ParseObject(json.RawMessage(raw))
			if !errors.Is(err, apub.ErrUnparsableObject) {
				t.Errorf("expected ErrUnparsableObject, got %v", err)
			}
		})
	}
}

func TestParseObjectAttachmentClassification(t *testing.T) {
	t.Parallel()

	note, err := apub.ParseObject(json.RawMessage(`{
		"id": "https://remote.example/objects/8",
		"published": "2026-08-01T12:00:00Z",
		"attachment": [
			{"url": "https://remote.example/media/1.png", "mediaType": "image/png"},
			{"href": "https://remote.example/media/2.mp4", "mediaType": "video/mp4"},
			{"url": "https://remote.example/media/3.bin", "mediaType": "application/octet-stream"}
		]
	}`))
	if err != nil {
		t.Fatal(err)
	}

	kinds := []string{apub.AttachmentImage, apub.AttachmentVideo, apub.AttachmentUnknown}
	if len(note.Attachments) != len(kinds) {
		t.Fatalf("expected %d attachments, got %d", len(kinds), len(note.Attachments))
	}
	for i, kind := range kinds {
		if note.Attachments[i].Kind != kind {
			t.Errorf("attachment %d: expected kind %s, got %s", i, kind, note.Attachments[i].Kind)
		}
	}
}

func TestParseObjectSingleAttachmentObject(t *testing.T) {
	t.Parallel()

	note, err := apub.ParseObject(json.RawMessage(`{
		"id": "https://remote.example/objects/9",
		"published": "2026-08-01T12:00:00Z",
		"attachment": {"url": "https://remote.example/media/1.png", "mediaType": "image/png"}
	}`))
	if err != nil {
		t.Fatal(err)
	}
	if len(note.Attachments) != 1 {
		t.Fatalf("expected one attachment, got %d", len(note.Attachments))
	}
}

func TestStripHTML(t *testing.T) {
	t.Parallel()

	got := apub.StripHTML("<p>one\n two</p>  <b>it&#39;s</b>")
	if got != "one two it's" {
		t.Errorf("unexpected projection: %q", got)
	}
}
