package services

import (
	"testing"
)

func TestExtractVideoID(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"watch URL", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"short URL", "https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"shorts URL", "https://www.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"embed URL", "https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"with extra params", "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42s", "dQw4w9WgXcQ"},
		{"not youtube", "https://vimeo.com/12345", ""},
		{"garbage", "not a url", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractVideoID(tt.url); got != tt.want {
				t.Errorf("ExtractVideoID(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}

func TestExtractCaptionURL(t *testing.T) {
	page := `{"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":[{"baseUrl":"https:\/\/www.youtube.com\/api\/timedtext?v=abc&lang=en&fmt=srv1","name":{"simpleText":"English"}}], "audioTracks":[]}}}`

	url, err := extractCaptionURL(page)
	if err != nil {
		t.Fatalf("extractCaptionURL() error = %v", err)
	}

	want := "https://www.youtube.com/api/timedtext?v=abc&lang=en&fmt=srv1"
	if url != want {
		t.Errorf("extractCaptionURL() = %q, want %q", url, want)
	}
}

func TestExtractCaptionURL_NoCaptions(t *testing.T) {
	if _, err := extractCaptionURL(`{"captions":{}}`); err == nil {
		t.Error("expected error when no caption tracks are present")
	}
}

func TestParseCaptionsXML(t *testing.T) {
	data := []byte(`<?xml version="1.0" encoding="utf-8"?>
<transcript>
  <text start="0.5" dur="2.5">Hello world</text>
  <text start="3.0" dur="1.5">Second &amp; third</text>
  <text start="5.0" dur="2.0">   </text>
</transcript>`)

	segments, err := parseCaptionsXML(data)
	if err != nil {
		t.Fatalf("parseCaptionsXML() error = %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}

	if segments[0].StartTime != 0.5 || segments[0].EndTime != 3.0 {
		t.Errorf("segment 0 interval = [%v, %v), want [0.5, 3)", segments[0].StartTime, segments[0].EndTime)
	}
	if segments[1].OriginalText != "Second & third" {
		t.Errorf("segment 1 text = %q, want unescaped ampersand", segments[1].OriginalText)
	}
}

func TestParseCaptionsXMLEmpty(t *testing.T) {
	if _, err := parseCaptionsXML([]byte(`<transcript></transcript>`)); err == nil {
		t.Error("expected error for empty transcript")
	}
}
