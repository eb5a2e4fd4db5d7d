package twofactor

import (
	"encoding/base32"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rfcSeed is the ASCII secret "12345678901234567890" from RFC 6238 Appendix B.
var rfcSeed = base32.StdEncoding.WithPadding(base32.NoPadding).
	EncodeToString([]byte("12345678901234567890"))

func TestIsCodeValid_RFC6238Vectors(t *testing.T) {
	// Appendix B SHA-1 vectors, truncated to 6 digits.
	tests := []struct {
		unix int64
		code string
	}{
		{59, "287082"},
		{1111111109, "081804"},
		{1111111111, "050471"},
		{1234567890, "005924"},
		{2000000000, "279037"},
		{20000000000, "353130"},
	}

	for _, tt := range tests {
		at := time.Unix(tt.unix, 0).UTC()
		assert.Equal(t, tt.code, CodeAt(rfcSeed, at), "CodeAt(%d)", tt.unix)
		assert.True(t, isCodeValidAt(rfcSeed, tt.code, at), "code %s at %d", tt.code, tt.unix)
	}
}

func TestIsCodeValid_SkewWindow(t *testing.T) {
	seed, err := GenerateSeed()
	require.NoError(t, err)

	base := time.Unix(1_700_000_000, 0)
	code := CodeAt(seed, base)

	// inside the same step and one step away in either direction
	assert.True(t, isCodeValidAt(seed, code, base.Add(5*time.Second)))
	assert.True(t, isCodeValidAt(seed, code, base.Add(35*time.Second)))
	assert.True(t, isCodeValidAt(seed, code, base.Add(-25*time.Second)))

	// more than one step away
	assert.False(t, isCodeValidAt(seed, code, base.Add(65*time.Second)))
	assert.False(t, isCodeValidAt(seed, code, base.Add(-65*time.Second)))
}

func TestIsCodeValid_RejectsGarbageWithoutFault(t *testing.T) {
	seed, err := GenerateSeed()
	require.NoError(t, err)

	now := time.Unix(1_700_000_000, 0)

	tests := []struct {
		name string
		code string
	}{
		{name: "empty", code: ""},
		{name: "non numeric", code: "abc123"},
		{name: "too short", code: "123"},
		{name: "too long", code: "1234567"},
		{name: "negative", code: "-12345"},
		{name: "spaces inside", code: "12 345"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, isCodeValidAt(seed, tt.code, now))
		})
	}
}

func TestIsCodeValid_BadSeed(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	assert.False(t, isCodeValidAt("not-base32!!", "123456", now))
	assert.False(t, isCodeValidAt("", "123456", now))
}

func TestGenerateSeed_Base32NoPadding(t *testing.T) {
	seed, err := GenerateSeed()
	require.NoError(t, err)

	assert.NotContains(t, seed, "=")
	raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(seed)
	require.NoError(t, err)
	assert.Len(t, raw, seedBytes)

	other, err := GenerateSeed()
	require.NoError(t, err)
	assert.NotEqual(t, seed, other)
}

func TestProvisioningURI(t *testing.T) {
	uri := ProvisioningURI("PicVault", "alice@example.com", "JBSWY3DPEHPK3PXP")

	require.True(t, strings.HasPrefix(uri, "otpauth://totp/PicVault:alice@example.com?"), uri)
	assert.Contains(t, uri, "secret=JBSWY3DPEHPK3PXP")
	assert.Contains(t, uri, "issuer=PicVault")
	assert.Contains(t, uri, "period=30")
	assert.Contains(t, uri, "digits=6")
	assert.Contains(t, uri, "algorithm=SHA1")
}
