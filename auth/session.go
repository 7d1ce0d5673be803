package auth

import (
	"os"
	"strings"
	"sync"

	"github.com/earthdaily/earthone-go/httpx"
)

// sessionRegistry lazily builds the HTTP session on first use and rebuilds
// it whenever the recorded process identity no longer matches the current
// one. The underlying connection pool is safe to share between goroutines
// but must not be inherited across a process fork.
type sessionRegistry struct {
	factory func() *httpx.Client

	mu     sync.Mutex
	pid    int
	client *httpx.Client
}

func newSessionRegistry(factory func() *httpx.Client) *sessionRegistry {
	return &sessionRegistry{factory: factory, pid: os.Getpid()}
}

func (r *sessionRegistry) get() *httpx.Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	if pid := os.Getpid(); r.client == nil || r.pid != pid {
		r.pid = pid
		r.client = r.factory()
	}

	return r.client
}

// buildSession constructs the session used for token exchange and shared
// with downstream API clients.
func (a *Auth) buildSession() *httpx.Client {
	opts := []httpx.ClientOption{
		httpx.WithBaseURL(a.domain),
		httpx.WithRetryPolicy(a.retry),
	}
	// Local testing will not have the necessary certs.
	if strings.HasPrefix(a.domain, "https://dev.localhost") {
		opts = append(opts, httpx.WithInsecureSkipVerify())
	}
	return httpx.NewClient(opts...)
}

// Session returns the HTTP session for the current process, building it on
// first use.
func (a *Auth) Session() *httpx.Client {
	return a.sessions.get()
}
