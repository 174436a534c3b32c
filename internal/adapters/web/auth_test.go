package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"pos-backoffice/internal/core"
)

const testSecret = "test-secret"

func signedToken(t *testing.T, userID int, role, unit string) string {
	t.Helper()
	claims := &jwtClaims{
		UserID: userID,
		Role:   role,
		Unit:   unit,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return signed
}

func requestWithClaims(claims *AuthClaims) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	return r.WithContext(context.WithValue(r.Context(), authClaimsKey{}, claims))
}

func TestRequireAuth_CarriesUnitClaim(t *testing.T) {
	h := &Handler{jwtSecret: testSecret}

	var got *AuthClaims
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = authFromContext(r.Context())
	})

	r := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	r.AddCookie(&http.Cookie{Name: "auth_token", Value: signedToken(t, 7, "storekeeper", "shop")})
	w := httptest.NewRecorder()
	h.RequireAuth(inner).ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if got == nil || got.UserID != 7 || got.Role != "storekeeper" || got.Unit != "shop" {
		t.Errorf("Expected claims for user 7 with shop unit, got %+v", got)
	}
}

func TestRequireAuth_RejectsMissingToken(t *testing.T) {
	h := &Handler{jwtSecret: testSecret}
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Handler must not run without a token")
	})

	w := httptest.NewRecorder()
	h.RequireAuth(inner).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", w.Code)
	}
}

func TestRequireUnit(t *testing.T) {
	h := &Handler{jwtSecret: testSecret}
	guard := h.RequireUnit(core.UnitShop)
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	cases := []struct {
		name   string
		claims *AuthClaims
		want   int
	}{
		{"shop staff allowed", &AuthClaims{UserID: 1, Role: "storekeeper", Unit: "shop"}, http.StatusNoContent},
		{"workshop staff forbidden", &AuthClaims{UserID: 2, Role: "manager", Unit: "workshop"}, http.StatusForbidden},
		{"admin always allowed", &AuthClaims{UserID: 3, Role: "admin", Unit: "workshop"}, http.StatusNoContent},
		{"unassigned treated as shop", &AuthClaims{UserID: 4, Role: "manager", Unit: ""}, http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			guard(inner).ServeHTTP(w, requestWithClaims(tc.claims))
			if w.Code != tc.want {
				t.Errorf("Expected %d, got %d", tc.want, w.Code)
			}
		})
	}
}
