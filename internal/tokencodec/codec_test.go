package tokencodec

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/and161185/bookshelf/internal/errs"
)

func rawToken(payload string) string {
	enc := base64.RawURLEncoding
	return enc.EncodeToString([]byte(`{"alg":"none"}`)) + "." + enc.EncodeToString([]byte(payload)) + ".sig"
}

func makeJWT(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte("any-key"))
	require.NoError(t, err)
	return s
}

func TestDecode_SignedToken(t *testing.T) {
	t.Parallel()

	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	tok := makeJWT(t, jwt.MapClaims{
		"sub":                "u-1",
		"preferred_username": "admin",
		"exp":                exp.Unix(),
		"realm_access":       map[string]any{"roles": []any{"admin", 7, "user"}},
	})

	c, err := Decode(tok)
	require.NoError(t, err)
	require.Equal(t, "u-1", c.Subject)
	require.Equal(t, "admin", c.PreferredUsername)
	require.NotNil(t, c.ExpiresAt)
	require.True(t, exp.Equal(*c.ExpiresAt))
	require.Equal(t, []string{"admin", "user"}, c.Roles)
	require.True(t, c.HasRole("admin"))
	require.False(t, c.HasRole("auditor"))
	require.True(t, c.ValidAt(time.Now()))
	require.False(t, c.ValidAt(exp.Add(time.Second)))
}

func TestDecode_SegmentCount(t *testing.T) {
	t.Parallel()

	for _, tok := range []string{"", "a", "a.b", "a.b.c.d"} {
		_, err := Decode(tok)
		require.ErrorIs(t, err, errs.ErrMalformedToken, tok)
	}
}

func TestDecode_BadBase64(t *testing.T) {
	t.Parallel()

	_, err := Decode("h.!!!not-base64!!!.s")
	require.ErrorIs(t, err, errs.ErrMalformedToken)
}

func TestDecode_PayloadMustBeObject(t *testing.T) {
	t.Parallel()

	for _, p := range []string{`null`, `[1,2]`, `42`, `"str"`, `{broken`} {
		_, err := Decode(rawToken(p))
		require.ErrorIs(t, err, errs.ErrMalformedToken, p)
	}
}

func TestDecode_TrailingData(t *testing.T) {
	t.Parallel()

	for _, p := range []string{`{"exp":1}garbage`, `{"exp":1}{}`, `{"exp":1} 2`} {
		_, err := Decode(rawToken(p))
		require.ErrorIs(t, err, errs.ErrMalformedToken, p)
	}
	c, err := Decode(rawToken("{\"exp\":1}\n "))
	require.NoError(t, err)
	require.NotNil(t, c.ExpiresAt)
}

func TestDecode_PaddingTolerated(t *testing.T) {
	t.Parallel()

	payload := base64.URLEncoding.EncodeToString([]byte(`{"exp":10}`))
	c, err := Decode("h." + payload + ".s")
	require.NoError(t, err)
	require.NotNil(t, c.ExpiresAt)
	require.Equal(t, int64(10), c.ExpiresAt.Unix())
}

func TestDecode_MissingOrInvalidExp(t *testing.T) {
	t.Parallel()

	c, err := Decode(rawToken(`{"sub":"x"}`))
	require.NoError(t, err)
	require.Nil(t, c.ExpiresAt)
	require.False(t, c.ValidAt(time.Unix(0, 0)))
	require.Empty(t, c.Roles)

	c, err = Decode(rawToken(`{"exp":"tomorrow","realm_access":{"roles":"admin"}}`))
	require.NoError(t, err)
	require.Nil(t, c.ExpiresAt)
	require.Empty(t, c.Roles)
}
