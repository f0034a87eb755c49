package update

import (
	"testing"
)

func TestParseManifest(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr bool
		wantURL string
	}{
		{
			name:    "relative url",
			data:    `{"version":"1.2.0","assets":[{"name":"beep.wav","url":"sounds/beep.wav"}]}`,
			wantURL: "https://example.com/app/sounds/beep.wav",
		},
		{
			name:    "name as url",
			data:    `{"version":"1.2.0","assets":[{"name":"index.html"}]}`,
			wantURL: "https://example.com/app/index.html",
		},
		{
			name:    "absolute url",
			data:    `{"version":"1.2.0","assets":[{"name":"beep.wav","url":"https://cdn.example.net/beep.wav"}]}`,
			wantURL: "https://cdn.example.net/beep.wav",
		},
		{name: "missing version", data: `{"assets":[]}`, wantErr: true},
		{name: "unnamed asset", data: `{"version":"1","assets":[{"url":"x"}]}`, wantErr: true},
		{name: "duplicate asset", data: `{"version":"1","assets":[{"name":"a.js"},{"name":"a.js"}]}`, wantErr: true},
		{name: "not json", data: `<html>`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ParseManifest([]byte(tt.data), "https://example.com/app/manifest.json")
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseManifest() error = %v", err)
			}
			if got := m.Assets[0].URL; got != tt.wantURL {
				t.Errorf("url = %q, want %q", got, tt.wantURL)
			}
		})
	}
}
