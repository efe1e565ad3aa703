package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignedURLSignerGenerateAndParse(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, expiresAt, err := signer.Generate("01HZX3.pdf")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.False(t, expiresAt.IsZero())

	name, parsedExpiry, err := signer.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "01HZX3.pdf", name)
	require.WithinDuration(t, expiresAt, parsedExpiry, time.Second)

	require.NoError(t, signer.Verify(token, "01HZX3.pdf"))
	require.Error(t, signer.Verify(token, "other.pdf"))
}

func TestSignedURLSignerRejectsTamperingAndExpiry(t *testing.T) {
	signer := NewSignedURLSigner("secret", 10*time.Millisecond)
	token, _, err := signer.Generate("a.pdf")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	forged := strings.Join([]string{parts[0], "9999999999", parts[2]}, ".")
	_, _, err = signer.Parse(forged)
	require.Error(t, err)

	other := NewSignedURLSigner("other-secret", time.Hour)
	_, _, err = other.Parse(token)
	require.Error(t, err)

	time.Sleep(20 * time.Millisecond)
	_, _, err = signer.Parse(token)
	require.Error(t, err)
}
