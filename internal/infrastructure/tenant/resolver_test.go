package tenant

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var tamilnadu = URLs{
	Frontend: "https://tamilnadu.inzighted.com",
	Backend:  "https://api.tamilnadu.inzighted.com",
}

var fallback = URLs{
	Frontend: "https://app.inzighted.com",
	Backend:  "https://api.inzighted.com",
}

func newTestResolver() *Resolver {
	exact := map[string]URLs{
		"https://demo.example.com": {
			Frontend: "https://demo.example.com",
			Backend:  "https://api.demo.example.com",
		},
	}
	keywords := []KeywordTenant{{Keyword: "tamilnadu", URLs: tamilnadu}}
	return NewResolver(exact, keywords, fallback, nil)
}

func TestResolve_LocalDevelopment(t *testing.T) {
	r := newTestResolver()

	tests := []struct {
		name   string
		origin string
	}{
		{name: "localhost", origin: "http://localhost:5173"},
		{name: "loopback", origin: "http://127.0.0.1:3000"},
		{name: "bare IPv4", origin: "http://192.168.1.20:8081"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			urls, match := r.Resolve(tt.origin)
			assert.Equal(t, MatchLocal, match)
			assert.Equal(t, tt.origin, urls.Frontend)
			assert.Equal(t, fallback.Backend, urls.Backend)
		})
	}
}

func TestResolve_KeywordMatch(t *testing.T) {
	r := newTestResolver()

	for _, origin := range []string{
		"https://tamilnadu.inzighted.com",
		"https://foo.tamilnadu.example.com",
		"https://TAMILNADU.example.com",
	} {
		urls, match := r.Resolve(origin)
		assert.Equal(t, MatchKeyword, match, origin)
		assert.Equal(t, tamilnadu, urls, origin)
	}
}

func TestResolve_ExactMatch(t *testing.T) {
	r := newTestResolver()

	urls, match := r.Resolve("https://demo.example.com")
	assert.Equal(t, MatchExact, match)
	assert.Equal(t, "https://api.demo.example.com", urls.Backend)
}

func TestResolve_TrailingSlashStripped(t *testing.T) {
	r := newTestResolver()

	urls, match := r.Resolve("https://demo.example.com/")
	assert.Equal(t, MatchExact, match)
	assert.Equal(t, "https://demo.example.com", urls.Frontend)
}

func TestResolve_UnknownFallsOpenToDefault(t *testing.T) {
	r := newTestResolver()

	urls, match := r.Resolve("https://unknown.example.com")
	assert.Equal(t, MatchDefault, match)
	assert.Equal(t, fallback, urls)
}

func TestResolve_EmptyOriginFallsOpen(t *testing.T) {
	r := newTestResolver()

	urls, match := r.Resolve("")
	assert.Equal(t, MatchDefault, match)
	assert.Equal(t, fallback, urls)
}
