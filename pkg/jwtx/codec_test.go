package jwtx_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/taskdeck/taskdeck/pkg/jwtx"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newCodec(t *testing.T) *jwtx.Codec {
	t.Helper()

	codec, err := jwtx.NewCodec([]byte(testSecret), "taskdeck-test")
	require.NoError(t, err)
	return codec
}

func sessionClaims(issuer string, ttl time.Duration) jwtx.Claims {
	return jwtx.NewSessionClaims(
		"user-1", "session-1", "tab-key", "token-1",
		3, "device-fp", issuer, ttl, time.Now().UTC(),
	)
}

func TestNewCodecRejectsShortSecret(t *testing.T) {
	_, err := jwtx.NewCodec([]byte("too-short"), "issuer")
	require.Error(t, err)
}

func TestEncodeDecodeRoundtrip(t *testing.T) {
	codec := newCodec(t)

	token, err := codec.Encode(sessionClaims("taskdeck-test", time.Hour))
	require.NoError(t, err)

	claims, err := codec.Decode(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.UserID())
	require.Equal(t, "session-1", claims.SID)
	require.Equal(t, "tab-key", claims.TabKey)
	require.Equal(t, "token-1", claims.TokenID())
	require.Equal(t, 3, claims.TokenVersion)
	require.Equal(t, "device-fp", claims.Fingerprint)
}

func TestDecodeExpiredToken(t *testing.T) {
	codec := newCodec(t)

	token, err := codec.Encode(sessionClaims("taskdeck-test", -time.Minute))
	require.NoError(t, err)

	_, err = codec.Decode(token)
	require.ErrorIs(t, err, jwtx.ErrExpired)
}

func TestDecodeGarbage(t *testing.T) {
	codec := newCodec(t)

	_, err := codec.Decode("not.a.token")
	require.ErrorIs(t, err, jwtx.ErrMalformed)
}

func TestDecodeRejectsForeignSignature(t *testing.T) {
	codec := newCodec(t)
	other, err := jwtx.NewCodec([]byte("ffffffffffffffffffffffffffffffff"), "taskdeck-test")
	require.NoError(t, err)

	token, err := other.Encode(sessionClaims("taskdeck-test", time.Hour))
	require.NoError(t, err)

	_, err = codec.Decode(token)
	require.ErrorIs(t, err, jwtx.ErrMalformed)
}

func TestDecodeRejectsWrongIssuer(t *testing.T) {
	codec := newCodec(t)
	other, err := jwtx.NewCodec([]byte(testSecret), "someone-else")
	require.NoError(t, err)

	token, err := other.Encode(sessionClaims("someone-else", time.Hour))
	require.NoError(t, err)

	_, err = codec.Decode(token)
	require.ErrorIs(t, err, jwtx.ErrMalformed)
}
