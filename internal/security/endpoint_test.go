package security

import (
	"strings"
	"testing"
)

func TestValidateEndpointURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"https public address ok", "https://93.184.216.34/veriseal", false},
		{"http allowed", "http://93.184.216.34/veriseal", false},
		{"bad scheme", "ftp://hooks.example.com/x", true},
		{"no host", "https://", true},
		{"localhost blocked", "https://localhost/hook", true},
		{"loopback blocked", "https://127.0.0.1/hook", true},
		{"private blocked", "https://10.0.0.5/hook", true},
		{"link-local blocked", "https://169.254.169.254/latest/meta-data", true},
		{"unspecified blocked", "https://0.0.0.0/hook", true},
		{"metadata hostname blocked", "https://metadata.google.internal/computeMetadata", true},
		{"not a url", "://nope", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEndpointURL(tt.url)
			if tt.wantErr && err == nil {
				t.Errorf("expected error for %q", tt.url)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error for %q: %v", tt.url, err)
			}
		})
	}
}

func TestValidateEndpointURL_TooLong(t *testing.T) {
	long := "https://hooks.example.com/" + strings.Repeat("a", maxEndpointURLLen)
	if err := ValidateEndpointURL(long); err == nil {
		t.Error("expected error for oversized URL")
	}
}
