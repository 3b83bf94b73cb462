package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	d "github.com/fjod/go_cart/storefront/domain"
)

func TestIssueAndVerify(t *testing.T) {
	v := NewVerifier("secret", "storefront")
	token, err := v.Issue(d.Identity{Username: "asha", Email: "asha@mail.test", Phone: "9000090000"}, time.Minute)
	require.NoError(t, err)

	id, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, d.Identity{Username: "asha", Email: "asha@mail.test", Phone: "9000090000"}, id)
}

func TestVerify_Expired(t *testing.T) {
	v := NewVerifier("secret", "")
	token, err := v.Issue(d.Identity{Username: "asha"}, -time.Minute)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerify_WrongSecretOrIssuer(t *testing.T) {
	token, err := NewVerifier("secret", "storefront").Issue(d.Identity{Username: "asha"}, time.Minute)
	require.NoError(t, err)

	_, err = NewVerifier("other", "storefront").Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewVerifier("secret", "elsewhere").Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_RejectsNoneAlgorithm(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Username: "asha"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewVerifier("secret", "").Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMiddleware(t *testing.T) {
	v := NewVerifier("secret", "")
	token, err := v.Issue(d.Identity{Username: "asha"}, time.Minute)
	require.NoError(t, err)

	var got d.Identity
	h := v.Middleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
	}))

	tests := []struct {
		name   string
		header string
		want   d.Identity
	}{
		{"valid token", "Bearer " + token, d.Identity{Username: "asha"}},
		{"lowercase scheme", "bearer " + token, d.Identity{Username: "asha"}},
		{"no header", "", d.Identity{}},
		{"garbage", "Bearer nope", d.Identity{}},
		{"basic auth", "Basic YXNoYTpwdw==", d.Identity{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got = d.Identity{Username: "stale"}
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			assert.Equal(t, tt.want, got)
		})
	}
}
