package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAuthenticator_BearerScheme(t *testing.T) {
	a := New("secret")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer secret")

	ok, scheme := a.Authenticate(req)
	if !ok || scheme != SchemeBearer {
		t.Errorf("Authenticate() = (%v, %v), want (true, SchemeBearer)", ok, scheme)
	}
}

func TestAuthenticator_APIKeyScheme(t *testing.T) {
	a := New("secret")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", "secret")

	ok, scheme := a.Authenticate(req)
	if !ok || scheme != SchemeAPIKey {
		t.Errorf("Authenticate() = (%v, %v), want (true, SchemeAPIKey)", ok, scheme)
	}
}

func TestAuthenticator_GoogAPIKeyScheme(t *testing.T) {
	a := New("secret")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("x-goog-api-key", "secret")

	ok, scheme := a.Authenticate(req)
	if !ok || scheme != SchemeGoogAPIKey {
		t.Errorf("Authenticate() = (%v, %v), want (true, SchemeGoogAPIKey)", ok, scheme)
	}
}

func TestAuthenticator_WrongCredential(t *testing.T) {
	a := New("secret")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer wrong")

	ok, _ := a.Authenticate(req)
	if ok {
		t.Error("expected wrong credential to be rejected")
	}
}

func TestAuthenticator_NoCredential(t *testing.T) {
	a := New("secret")
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	ok, scheme := a.Authenticate(req)
	if ok || scheme != SchemeNone {
		t.Errorf("Authenticate() = (%v, %v), want (false, SchemeNone)", ok, scheme)
	}
}
