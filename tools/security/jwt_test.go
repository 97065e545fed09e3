package security

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestGenerateVerifyRoundTrip(t *testing.T) {
	opts := DefaultOptions([]byte("secret"))
	token, exp, err := Generate(opts, "alice")
	require.NoError(t, err)
	require.True(t, exp.After(time.Now()))

	sub, err := Verify(opts, token)
	require.NoError(t, err)
	require.Equal(t, "alice", sub)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, _, err := Generate(DefaultOptions([]byte("secret-a")), "alice")
	require.NoError(t, err)

	_, err = Verify(DefaultOptions([]byte("secret-b")), token)
	require.Error(t, err)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	opts := DefaultOptions([]byte("secret"))
	past := time.Now().Add(-time.Hour)
	tok := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
		"sub": "alice",
		"iat": past.Unix(),
		"exp": past.Add(time.Minute).Unix(),
	})
	signed, err := tok.SignedString(opts.Secret)
	require.NoError(t, err)

	_, err = Verify(opts, signed)
	require.Error(t, err)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	_, err := Verify(DefaultOptions([]byte("secret")), "not.a.token")
	require.Error(t, err)
}

func TestUnsupportedAlg(t *testing.T) {
	opts := Options{Secret: []byte("secret"), Alg: "RS256"}
	_, _, err := Generate(opts, "alice")
	require.Error(t, err)
}

func TestAlternateHMACAlgs(t *testing.T) {
	for _, alg := range []string{"HS256", "HS384", "HS512"} {
		opts := Options{Secret: []byte("secret"), Alg: alg, TTL: time.Hour}
		token, _, err := Generate(opts, "alice")
		require.NoError(t, err, alg)
		sub, err := Verify(opts, token)
		require.NoError(t, err, alg)
		require.Equal(t, "alice", sub)
	}
}
