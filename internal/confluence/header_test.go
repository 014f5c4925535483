package confluence

import "testing"

func TestHeaderRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		h    Header
		body string
	}{
		{"full", Header{URL: "https://x/wiki/spaces/E/pages/7/T", PageID: "7", Version: 4}, "<p>one</p>\n\n<p>two</p>"},
		{"empty body", Header{URL: "u", PageID: "9", Version: 1}, ""},
		{"no url", Header{PageID: "3", Version: 2}, "body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, body, ok := DecodeHeader(EncodeHeader(tt.h, tt.body))
			if !ok {
				t.Fatal("DecodeHeader reported no header")
			}
			if h != tt.h || body != tt.body {
				t.Errorf("got (%+v, %q), want (%+v, %q)", h, body, tt.h, tt.body)
			}
		})
	}
}

func TestDecodeHeader_legacyURLOnly(t *testing.T) {
	h, body, ok := DecodeHeader("URL: https://x/wiki/spaces/E/pages/42/Title\n\n<p>b</p>")
	if !ok {
		t.Fatal("expected header")
	}
	if h.PageID != "" || h.Version != 0 || body != "<p>b</p>" {
		t.Errorf("got (%+v, %q)", h, body)
	}
	if !h.matchesPage("42") || h.matchesPage("4") {
		t.Error("legacy header should match by URL page id")
	}
}

func TestDecodeHeader_notAHeader(t *testing.T) {
	raw := "--- Message from A on 1 Jan. ---\nMessage: hi"
	_, body, ok := DecodeHeader(raw)
	if ok {
		t.Error("chat raw text must not decode as a wiki header")
	}
	if body != raw {
		t.Errorf("body = %q", body)
	}
}
