package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritas-labs/sentinel/core/pkg/contracts"
)

func TestVerifyApproverRoundTrip(t *testing.T) {
	v, err := NewVerifier([]byte("shared-secret"))
	require.NoError(t, err)

	assertion, err := v.MintAssertion(contracts.Approver{ID: "op-1", Role: "sre-lead"}, time.Minute)
	require.NoError(t, err)

	approver, err := v.VerifyApprover(assertion)
	require.NoError(t, err)
	assert.Equal(t, "op-1", approver.ID)
	assert.Equal(t, "sre-lead", approver.Role)
}

func TestVerifyApproverRejectsWrongSecret(t *testing.T) {
	signer, err := NewVerifier([]byte("secret-a"))
	require.NoError(t, err)
	verifier, err := NewVerifier([]byte("secret-b"))
	require.NoError(t, err)

	assertion, err := signer.MintAssertion(contracts.Approver{ID: "op-1"}, time.Minute)
	require.NoError(t, err)

	_, err = verifier.VerifyApprover(assertion)
	assert.Error(t, err)
}

func TestVerifyApproverRejectsExpired(t *testing.T) {
	v, err := NewVerifier([]byte("shared-secret"))
	require.NoError(t, err)

	assertion, err := v.MintAssertion(contracts.Approver{ID: "op-1"}, -time.Minute)
	require.NoError(t, err)

	_, err = v.VerifyApprover(assertion)
	assert.Error(t, err)
}

func TestVerifyApproverRejectsGarbage(t *testing.T) {
	v, err := NewVerifier([]byte("shared-secret"))
	require.NoError(t, err)

	_, err = v.VerifyApprover("not.a.token")
	assert.Error(t, err)
}

func TestNewVerifierRequiresSecret(t *testing.T) {
	_, err := NewVerifier(nil)
	assert.ErrorIs(t, err, ErrEmptySecret)
}
