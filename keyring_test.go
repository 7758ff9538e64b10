package garth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestKeyringRoundTrip(t *testing.T) {
	keyring.MockInit()

	o1, o2 := testTokenPair()
	k := Keyring{Service: "garth-test"}
	require.NoError(t, k.Save("garmin.com", o1, o2))

	got1, got2, err := k.Load("garmin.com")
	require.NoError(t, err)
	assert.Equal(t, o1, got1)
	assert.Equal(t, o2, got2)

	// Entries are keyed by domain.
	_, _, err = k.Load("garmin.cn")
	require.Error(t, err)
	assert.True(t, IsAuthError(err))

	require.NoError(t, k.Delete("garmin.com"))
	_, _, err = k.Load("garmin.com")
	require.Error(t, err)
}

func TestKeyringAvailable(t *testing.T) {
	keyring.MockInit()
	assert.True(t, Keyring{Service: "garth-test"}.Available())
}
