package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestClientRequests(t *testing.T) {
	t.Run("get decodes the response body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer tok" {
				t.Errorf("Authorization = %q, want bearer token", r.Header.Get("Authorization"))
			}
			if r.URL.Query().Get("limit") != "5" {
				t.Errorf("limit = %q, want 5", r.URL.Query().Get("limit"))
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"name": "scene-1"})
		}))
		defer server.Close()

		var result struct {
			Name string `json:"name"`
		}
		client := NewClient(WithBaseURL(server.URL))
		_, err := client.Get(context.Background(), "/scenes", &result,
			WithBearer("tok"), WithQuery(map[string]string{"limit": "5"}))
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if result.Name != "scene-1" {
			t.Errorf("name = %q, want scene-1", result.Name)
		}
	})

	t.Run("post sends a json body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ct := r.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
				t.Errorf("Content-Type = %q", ct)
			}
			var body map[string]string
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decoding body: %v", err)
			}
			if body["grant_type"] != "refresh_token" {
				t.Errorf("body = %v", body)
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := NewClient(WithBaseURL(server.URL))
		_, err := client.Post(context.Background(), "/token",
			map[string]string{"grant_type": "refresh_token"}, nil)
		if err != nil {
			t.Fatalf("Post() error = %v", err)
		}
	})

	t.Run("error responses carry status and body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "quota exceeded", http.StatusForbidden)
		}))
		defer server.Close()

		client := NewClient(WithBaseURL(server.URL))
		resp, err := client.Get(context.Background(), "/", nil)
		if err == nil {
			t.Fatal("Get() should fail on a 403")
		}
		if !strings.Contains(err.Error(), "403") || !strings.Contains(err.Error(), "quota exceeded") {
			t.Errorf("error = %q, want status and body", err)
		}
		if resp.StatusCode() != http.StatusForbidden {
			t.Errorf("status = %d", resp.StatusCode())
		}
	})

	t.Run("empty bearer adds no header", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := r.Header["Authorization"]; ok {
				t.Error("Authorization header must be absent")
			}
		}))
		defer server.Close()

		client := NewClient(WithBaseURL(server.URL))
		if _, err := client.Get(context.Background(), "/", nil, WithBearer("  ")); err != nil {
			t.Fatalf("Get() error = %v", err)
		}
	})
}

func TestClientRetries(t *testing.T) {
	t.Run("retries listed statuses until success", func(t *testing.T) {
		var hits atomic.Int64
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hits.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := NewClient(WithBaseURL(server.URL), WithRetryPolicy(RetryPolicy{
			Count:    5,
			WaitMin:  time.Millisecond,
			WaitMax:  5 * time.Millisecond,
			Statuses: []int{429, 500, 502, 503, 504},
		}))
		if _, err := client.Get(context.Background(), "/", nil); err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if hits.Load() != 3 {
			t.Errorf("server hit %d times, want 3", hits.Load())
		}
	})

	t.Run("client errors are not retried", func(t *testing.T) {
		var hits atomic.Int64
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer server.Close()

		client := NewClient(WithBaseURL(server.URL), WithRetryPolicy(RetryPolicy{
			Count:    5,
			WaitMin:  time.Millisecond,
			WaitMax:  5 * time.Millisecond,
			Statuses: []int{429, 500, 502, 503, 504},
		}))
		if _, err := client.Get(context.Background(), "/", nil); err == nil {
			t.Fatal("Get() should fail on a 400")
		}
		if hits.Load() != 1 {
			t.Errorf("server hit %d times, want 1", hits.Load())
		}
	})

	t.Run("zero count disables retries", func(t *testing.T) {
		var hits atomic.Int64
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		client := NewClient(WithBaseURL(server.URL), WithRetryPolicy(RetryPolicy{}))
		if _, err := client.Get(context.Background(), "/", nil); err == nil {
			t.Fatal("Get() should fail on a 500")
		}
		if hits.Load() != 1 {
			t.Errorf("server hit %d times, want 1", hits.Load())
		}
	})
}

func TestRetryableStatus(t *testing.T) {
	policy := DefaultRetryPolicy()
	for _, code := range policy.Statuses {
		if !policy.retryableStatus(code) {
			t.Errorf("status %d should be retryable", code)
		}
	}
	for _, code := range []int{200, 400, 401, 404} {
		if policy.retryableStatus(code) {
			t.Errorf("status %d should not be retryable", code)
		}
	}
}

func TestRestyConfigHook(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Client") != "earthone-go" {
			t.Errorf("X-Client = %q", r.Header.Get("X-Client"))
		}
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithRestyConfig(func(rc RestClient) {
		rc.SetHeader("X-Client", "earthone-go")
	}))
	if _, err := client.Get(context.Background(), "/", nil); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
}
