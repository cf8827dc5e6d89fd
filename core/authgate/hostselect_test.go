package authgate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuthHost(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		hosts   []string
		referer string
		want    string
	}{
		{
			name:  "no referer falls back to first host",
			hosts: []string{"http://api.example.com", "http://other.example.com"},
			want:  "http://api.example.com",
		},
		{
			name:  "default host when nothing configured",
			hosts: nil,
			want:  "http://localhost",
		},
		{
			name:    "exact origin match echoes referer origin",
			hosts:   []string{"http://api.example.com"},
			referer: "http://api.example.com/orders",
			want:    "http://api.example.com",
		},
		{
			name:    "registrable domain suffix match keeps referer subdomain",
			hosts:   []string{".example.com"},
			referer: "https://app.example.com/dashboard",
			want:    "https://app.example.com",
		},
		{
			name:    "unmatched referer falls back to first host",
			hosts:   []string{"http://api.example.com"},
			referer: "http://evil.test/page",
			want:    "http://api.example.com",
		},
		{
			name:    "unparseable referer falls back to first host",
			hosts:   []string{"http://api.example.com"},
			referer: "::not-a-url::",
			want:    "http://api.example.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			g := New(Config{AuthHosts: tt.hosts})
			assert.Equal(t, tt.want, g.authHost(tt.referer))
		})
	}
}
