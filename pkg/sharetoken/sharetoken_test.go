package sharetoken

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndVerify(t *testing.T) {
	signer := NewSigner("secret", time.Hour)

	token, expiresAt, err := signer.Sign("doc-1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 2*time.Second)

	id, err := signer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "doc-1", id)
}

func TestVerifyRejectsTamperedAndForeignTokens(t *testing.T) {
	signer := NewSigner("secret", time.Hour)
	token, _, err := signer.Sign("doc-1")
	require.NoError(t, err)

	_, err = signer.Verify(token + "x")
	assert.True(t, errors.Is(err, ErrInvalid))

	other := NewSigner("other-secret", time.Hour)
	_, err = other.Verify(token)
	assert.True(t, errors.Is(err, ErrInvalid))

	_, err = signer.Verify("not-a-jwt")
	assert.True(t, errors.Is(err, ErrInvalid))
}

func TestVerifyRejectsExpired(t *testing.T) {
	signer := NewSigner("secret", time.Minute)
	issued := time.Now().Add(-2 * time.Hour)
	signer.now = func() time.Time { return issued }
	token, _, err := signer.Sign("doc-1")
	require.NoError(t, err)

	signer.now = time.Now
	_, err = signer.Verify(token)
	assert.True(t, errors.Is(err, ErrInvalid))
}

func TestSignRequiresInputs(t *testing.T) {
	_, _, err := NewSigner("secret", time.Hour).Sign("")
	assert.Error(t, err)

	_, _, err = NewSigner("", time.Hour).Sign("doc-1")
	assert.Error(t, err)
}
