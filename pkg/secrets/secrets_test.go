package secrets

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpen(t *testing.T) {
	sealed, err := Seal("hunter2", "master")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sealed, SealedPrefix))
	assert.NotContains(t, sealed, "hunter2")

	plain, err := Open(sealed, "master")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", plain)

	_, err = Open(sealed, "other")
	assert.ErrorIs(t, err, ErrOpenFailed)
}

func TestReveal(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		key     string
		want    string
		wantErr error
	}{
		{name: "plain value passes through", value: "plain", want: "plain"},
		{name: "empty value", value: "", want: ""},
		{name: "sealed without key", value: SealedPrefix + "AAAA", wantErr: ErrMissingKey},
		{name: "sealed garbage", value: SealedPrefix + "!!!", key: "k", wantErr: ErrMalformedSeal},
		{name: "sealed too short", value: SealedPrefix + "AAAA", key: "k", wantErr: ErrMalformedSeal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Reveal(tt.value, tt.key)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
