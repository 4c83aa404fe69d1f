package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestParseKind(t *testing.T) {
	for _, name := range []string{"google", "microsoft"} {
		if _, err := ParseKind(name); err != nil {
			t.Errorf("ParseKind(%q) error = %v", name, err)
		}
	}
	if _, err := ParseKind("github"); err == nil {
		t.Error("ParseKind should reject unknown providers")
	}
}

func TestNewFillsEndpoints(t *testing.T) {
	google, err := New(KindGoogle, "id", "secret", "https://plugin.example.com/auth/redirect")
	if err != nil {
		t.Fatalf("New(google) error = %v", err)
	}
	if google.ProfileURL == "" || google.OAuth.Endpoint.AuthURL == "" {
		t.Fatal("google provider missing endpoints")
	}
	if got := google.OAuth.Scopes; len(got) != 1 || got[0] != "profile" {
		t.Fatalf("google scopes = %v", got)
	}

	ms, err := New(KindMicrosoft, "id", "secret", "https://plugin.example.com/auth/redirect")
	if err != nil {
		t.Fatalf("New(microsoft) error = %v", err)
	}
	if got := ms.OAuth.Scopes; len(got) != 1 || got[0] != "user.read" {
		t.Fatalf("microsoft scopes = %v", got)
	}

	if _, err := New(Kind("github"), "id", "secret", ""); err == nil {
		t.Fatal("New should reject unknown providers")
	}
}

func checkTokenAgainst(t *testing.T, handler http.HandlerFunc) (bool, error) {
	t.Helper()
	server := httptest.NewServer(handler)
	defer server.Close()

	p, err := New(KindGoogle, "id", "secret", "")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	p.ProfileURL = server.URL
	return p.CheckToken(context.Background(), "some-access-token")
}

func TestCheckTokenValid(t *testing.T) {
	ok, err := checkTokenAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer some-access-token" {
			t.Errorf("Authorization = %q", got)
		}
		w.Write([]byte(`{"sub":"1234567890"}`))
	})
	if err != nil {
		t.Fatalf("CheckToken() error = %v", err)
	}
	if !ok {
		t.Fatal("CheckToken() = false, want true")
	}
}

func TestCheckTokenMissingIdentityField(t *testing.T) {
	ok, err := checkTokenAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		// Expired tokens yield an error document, still valid JSON.
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid_token"}`))
	})
	if err != nil {
		t.Fatalf("CheckToken() error = %v", err)
	}
	if ok {
		t.Fatal("CheckToken() = true, want false")
	}
}

func TestCheckTokenEmptyIdentityField(t *testing.T) {
	ok, err := checkTokenAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"sub":""}`))
	})
	if err != nil {
		t.Fatalf("CheckToken() error = %v", err)
	}
	if ok {
		t.Fatal("CheckToken() = true, want false")
	}
}

func TestCheckTokenMalformedBody(t *testing.T) {
	if _, err := checkTokenAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}); err == nil {
		t.Fatal("CheckToken() should fail on a malformed profile body")
	}
}

func TestCheckTokenTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	p, err := New(KindGoogle, "id", "secret", "")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	p.ProfileURL = server.URL
	p.HTTPClient = &http.Client{Timeout: 50 * time.Millisecond}

	if _, err := p.CheckToken(context.Background(), "token"); err == nil {
		t.Fatal("CheckToken() should fail when the provider is unreachable")
	}
}

func TestMicrosoftIdentityField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"displayName":"Henk Dieter"}`))
	}))
	defer server.Close()

	p, err := New(KindMicrosoft, "id", "secret", "")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	p.ProfileURL = server.URL

	ok, err := p.CheckToken(context.Background(), "token")
	if err != nil {
		t.Fatalf("CheckToken() error = %v", err)
	}
	if !ok {
		t.Fatal("CheckToken() = false, want true")
	}
}
