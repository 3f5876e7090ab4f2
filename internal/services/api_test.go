package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/mtx/internal/shared"
	tu "github.com/desertthunder/mtx/internal/testing"
)

// echoServer records the last request and answers with body and status.
func echoServer(t *testing.T, status int, contentType, body string) (*APIService, *http.Request, *string) {
	t.Helper()
	last := &http.Request{}
	var sent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*last = *r.Clone(context.Background())
		b, _ := io.ReadAll(r.Body)
		sent = string(b)
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		w.Header().Set("X-Library", "mtx-test")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(server.Close)
	return NewAPIService(server.URL+"/api/v1", server.Client()), last, &sent
}

func TestAPIService(t *testing.T) {
	ctx := context.Background()

	t.Run("New", func(t *testing.T) {
		tests := []struct {
			name    string
			baseURL string
			want    string
		}{
			{"custom base URL", "http://music.lan:9000/api/v1", "http://music.lan:9000/api/v1"},
			{"empty base URL uses the local server", "", "http://localhost:8080/api/v1"},
			{"trailing slash is trimmed", "http://music.lan/api/v1/", "http://music.lan/api/v1"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if got := NewAPIService(tt.baseURL, nil).BaseURL(); got != tt.want {
					t.Errorf("BaseURL() = %q, want %q", got, tt.want)
				}
			})
		}

		t.Run("nil client uses the default", func(t *testing.T) {
			if svc := NewAPIService("", nil); svc.httpClient != http.DefaultClient {
				t.Error("expected http.DefaultClient")
			}
		})
	})

	t.Run("Raw Requests", func(t *testing.T) {
		tests := []struct {
			name     string
			method   string
			call     func(*APIService) (*APIResponse, error)
			wantBody string
		}{
			{"get", http.MethodGet, func(a *APIService) (*APIResponse, error) { return a.Get(ctx, "/statistics") }, ""},
			{"post", http.MethodPost, func(a *APIService) (*APIResponse, error) {
				return a.Post(ctx, "/statistics", []byte(`{"ids":[1]}`))
			}, `{"ids":[1]}`},
			{"put", http.MethodPut, func(a *APIService) (*APIResponse, error) {
				return a.Put(ctx, "/statistics", []byte(`{"title":"x"}`))
			}, `{"title":"x"}`},
			{"delete", http.MethodDelete, func(a *APIService) (*APIResponse, error) { return a.Delete(ctx, "/statistics") }, ""},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				svc, last, sent := echoServer(t, http.StatusOK, "application/json", `{"code":0,"data":{"total":3}}`)

				resp, err := tt.call(svc)
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				if last.Method != tt.method || last.URL.Path != "/api/v1/statistics" {
					t.Errorf("unexpected request %s %s", last.Method, last.URL.Path)
				}
				if *sent != tt.wantBody {
					t.Errorf("request body = %q, want %q", *sent, tt.wantBody)
				}
				if tt.wantBody != "" && last.Header.Get("Content-Type") != "application/json" {
					t.Error("expected a JSON content type on requests with a body")
				}
				if last.Header.Get("Accept") != "application/json" {
					t.Error("expected Accept: application/json")
				}
				if !resp.IsJSON || resp.StatusCode != http.StatusOK {
					t.Errorf("unexpected response %+v", resp)
				}
				if resp.Headers.Get("X-Library") != "mtx-test" {
					t.Error("expected response headers to be preserved")
				}
			})
		}

		t.Run("non-JSON body", func(t *testing.T) {
			svc, _, _ := echoServer(t, http.StatusOK, "audio/mpeg", "ID3")
			resp, err := svc.Get(ctx, "/music/1/play")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if resp.IsJSON || resp.JSONData != nil || string(resp.Body) != "ID3" {
				t.Errorf("unexpected response %+v", resp)
			}
		})

		t.Run("invalid URL", func(t *testing.T) {
			svc := NewAPIService("http://[::1]:namedport", nil)
			if _, err := svc.Get(ctx, "/x"); err == nil || !strings.Contains(err.Error(), "failed to create request") {
				t.Errorf("expected a request creation error, got %v", err)
			}
		})

		t.Run("transport failure", func(t *testing.T) {
			client := tu.StubClient(nil, errors.New("connection refused"))
			svc := NewAPIService("http://music.test/api/v1", client)
			if _, err := svc.Get(ctx, "/health"); err == nil || !strings.Contains(err.Error(), "request failed") {
				t.Errorf("expected a transport error, got %v", err)
			}
		})

		t.Run("body read failure", func(t *testing.T) {
			resp := &http.Response{StatusCode: http.StatusOK, Body: tu.BrokenBody{}, Header: http.Header{}}
			client := tu.StubClient(resp, nil)
			svc := NewAPIService("http://music.test/api/v1", client)
			if _, err := svc.Post(ctx, "/scan", []byte(`{}`)); err == nil || !strings.Contains(err.Error(), "failed to read response") {
				t.Errorf("expected a read error, got %v", err)
			}
		})

		t.Run("cancelled context", func(t *testing.T) {
			svc, _, _ := echoServer(t, http.StatusOK, "", "{}")
			cancelled, cancel := context.WithCancel(ctx)
			cancel()
			if _, err := svc.Get(cancelled, "/statistics"); err == nil {
				t.Error("expected an error for a cancelled context")
			}
		})
	})

	t.Run("Envelope", func(t *testing.T) {
		tests := []struct {
			name     string
			status   int
			body     string
			wantCode int
			wantErr  error
		}{
			{"success", http.StatusOK, `{"code":0,"message":"success","data":{}}`, 0, nil},
			{"non-zero code on 200", http.StatusOK, `{"code":1,"message":"Track not found"}`, 1, shared.ErrAPIRequest},
			{"error status with zero code", http.StatusInternalServerError, `{"code":0,"message":"boom"}`, 500, shared.ErrAPIRequest},
			{"plain text error page", http.StatusNotFound, "404 page not found", 404, shared.ErrAPIRequest},
			{"plain text on 200", http.StatusOK, "<html>", 0, shared.ErrAPIRequest},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := decodeEnvelope(&APIResponse{StatusCode: tt.status, Body: []byte(tt.body)})
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("decodeEnvelope() error = %v, want %v", err, tt.wantErr)
				}
				if tt.wantCode != 0 {
					apiErr, ok := shared.AsAPIError(err)
					if !ok || apiErr.Code != tt.wantCode {
						t.Errorf("expected APIError code %d, got %v", tt.wantCode, err)
					}
				}
			})
		}

		t.Run("APIError keeps the server message", func(t *testing.T) {
			_, err := decodeEnvelope(&APIResponse{StatusCode: http.StatusConflict, Body: []byte(`{"code":409,"message":"Batch task already running"}`)})
			apiErr, ok := shared.AsAPIError(err)
			if !ok || apiErr.Message != "Batch task already running" || apiErr.Status != http.StatusConflict {
				t.Errorf("unexpected error %#v", err)
			}
		})
	})

	t.Run("call", func(t *testing.T) {
		t.Run("decodes data into out", func(t *testing.T) {
			svc, _, sent := echoServer(t, http.StatusOK, "application/json", `{"code":0,"data":{"updated":2,"failed":1}}`)
			var out struct {
				Updated int `json:"updated"`
				Failed  int `json:"failed"`
			}
			if _, err := svc.call(ctx, http.MethodPost, "/music/batch", map[string]any{"ids": []int{1, 2}}, &out); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if out.Updated != 2 || out.Failed != 1 {
				t.Errorf("unexpected result %+v", out)
			}
			if *sent != `{"ids":[1,2]}` {
				t.Errorf("unexpected request body %q", *sent)
			}
		})

		t.Run("null data leaves out untouched", func(t *testing.T) {
			svc, _, _ := echoServer(t, http.StatusOK, "application/json", `{"code":0,"data":null,"total":0}`)
			out := []int{7}
			if _, err := svc.call(ctx, http.MethodGet, "/music/search", nil, &out); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(out) != 1 {
				t.Errorf("expected out to be untouched, got %v", out)
			}
		})

		t.Run("mismatched data is a decode error", func(t *testing.T) {
			svc, _, _ := echoServer(t, http.StatusOK, "application/json", `{"code":0,"data":"text"}`)
			var out struct{ Total int }
			if _, err := svc.call(ctx, http.MethodGet, "/statistics", nil, &out); !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected ErrAPIRequest, got %v", err)
			}
		})

		t.Run("unencodable input fails before the request", func(t *testing.T) {
			svc, last, _ := echoServer(t, http.StatusOK, "application/json", `{"code":0}`)
			if _, err := svc.call(ctx, http.MethodPost, "/scan", make(chan int), nil); !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
			if last.Method != "" {
				t.Error("expected no request to be sent")
			}
		})

		t.Run("transport errors wrap ErrAPIRequest", func(t *testing.T) {
			client := tu.StubClient(nil, errors.New("no route to host"))
			svc := NewAPIService("http://music.test/api/v1", client)
			if _, err := svc.call(ctx, http.MethodGet, "/statistics", nil, nil); !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected ErrAPIRequest, got %v", err)
			}
		})
	})

	t.Run("rootURL", func(t *testing.T) {
		tests := []struct {
			baseURL string
			want    string
		}{
			{"http://music.lan:8080/api/v1", "http://music.lan:8080"},
			{"https://music.example.com/lib/api/v1?x=1", "https://music.example.com"},
			{"not a url", "not a url"},
		}
		for _, tt := range tests {
			if got := NewAPIService(tt.baseURL, nil).rootURL(); got != tt.want {
				t.Errorf("rootURL(%q) = %q, want %q", tt.baseURL, got, tt.want)
			}
		}
	})

	t.Run("snippet", func(t *testing.T) {
		if got := snippet([]byte("  short  ")); got != "short" {
			t.Errorf("snippet = %q", got)
		}
		if got := snippet([]byte(strings.Repeat("x", 200))); len(got) != 123 || !strings.HasSuffix(got, "...") {
			t.Errorf("expected a truncated snippet, got %d chars", len(got))
		}
	})
}
