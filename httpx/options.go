package httpx

import "time"

// RetryPolicy controls how a Client retries failed requests. A request is
// retried on transport errors and on any response status listed in
// Statuses, waiting a random duration between WaitMin and WaitMax.
type RetryPolicy struct {
	Count    int
	WaitMin  time.Duration
	WaitMax  time.Duration
	Statuses []int
}

// DefaultRetryPolicy returns the retry policy used by platform API clients:
// five attempts with a random backoff between one and ten seconds on
// throttling and server errors.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Count:    5,
		WaitMin:  1 * time.Second,
		WaitMax:  10 * time.Second,
		Statuses: []int{429, 500, 502, 503, 504},
	}
}

func (p RetryPolicy) retryableStatus(code int) bool {
	for _, s := range p.Statuses {
		if code == s {
			return true
		}
	}
	return false
}

type ClientOptions struct {
	BaseURL            string
	Timeout            time.Duration
	Headers            map[string]string
	Retry              *RetryPolicy
	InsecureSkipVerify bool
	RestyConfig        func(RestClient)
}

type ClientOption func(*ClientOptions)

func defaultClientOptions() ClientOptions {
	return ClientOptions{Timeout: 30 * time.Second, Headers: map[string]string{"Content-Type": "application/json"}}
}

func WithBaseURL(url string) ClientOption {
	return func(o *ClientOptions) {
		if url != "" {
			o.BaseURL = url
		}
	}
}

func WithClientTimeout(d time.Duration) ClientOption {
	return func(o *ClientOptions) {
		if d > 0 {
			o.Timeout = d
		}
	}
}

func WithHeaders(headers map[string]string) ClientOption {
	return func(o *ClientOptions) {
		if len(headers) == 0 {
			return
		}
		o.Headers = make(map[string]string, len(headers))
		for k, v := range headers {
			o.Headers[k] = v
		}
	}
}

// WithRetryPolicy installs a retry policy on the client. A policy with a
// zero Count disables retries.
func WithRetryPolicy(policy RetryPolicy) ClientOption {
	return func(o *ClientOptions) {
		o.Retry = &policy
	}
}

// WithInsecureSkipVerify disables TLS certificate verification. Local
// development domains run without trusted certificates.
func WithInsecureSkipVerify() ClientOption {
	return func(o *ClientOptions) {
		o.InsecureSkipVerify = true
	}
}

func WithRestyConfig(fn func(RestClient)) ClientOption {
	return func(o *ClientOptions) {
		o.RestyConfig = fn
	}
}
