package derive

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/vrf-wager-platform/internal/ledger"
	"github.com/radieske/vrf-wager-platform/internal/wager"
)

var (
	vrfProgram  = ledger.MustPublicKey("VRFzZoJdhFWL8rkvu87LpKM3RbcVezpMEc6X5GVDr7y")
	diceProgram = ledger.MustPublicKey("9jxkxo2uPSV2XBaPL11MMg2KE3XhaTEq9Dif81UNB6FH")
)

func TestDeriveIsDeterministic(t *testing.T) {
	d := New(vrfProgram, diceProgram)
	seed, err := NewSeed()
	require.NoError(t, err)

	a, err := d.Derive(seed)
	require.NoError(t, err)
	b, err := d.Derive(seed)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a.RandomnessRef, a.WagerAccountRef)

	// a conta de aposta parte da conta de randomness
	bet, _, err := ledger.FindProgramAddress([][]byte{[]byte("bet"), a.RandomnessRef[:]}, diceProgram)
	require.NoError(t, err)
	assert.Equal(t, bet, a.WagerAccountRef)
}

func TestDeriveNeverCollides(t *testing.T) {
	d := New(vrfProgram, diceProgram)
	seen := map[ledger.PublicKey]bool{}
	for i := 0; i < 300; i++ {
		seed, err := NewSeed()
		require.NoError(t, err)
		a, err := d.Derive(seed)
		require.NoError(t, err)
		for _, pk := range []ledger.PublicKey{a.RandomnessRef, a.WagerAccountRef} {
			require.False(t, seen[pk], "collision on %s", pk)
			seen[pk] = true
		}
	}
}

func TestDeriveDependsOnGameProgram(t *testing.T) {
	wheel := ledger.MustPublicKey("5CBsiiCU7K9pzNxzmSs7r1sw8UhjsHYWA5srQtm7uDqt")
	seed, err := NewSeed()
	require.NoError(t, err)

	a, err := New(vrfProgram, diceProgram).Derive(seed)
	require.NoError(t, err)
	b, err := New(vrfProgram, wheel).Derive(seed)
	require.NoError(t, err)

	assert.Equal(t, a.RandomnessRef, b.RandomnessRef)
	assert.NotEqual(t, a.WagerAccountRef, b.WagerAccountRef)
}

func TestDeriveRejectsZeroSeed(t *testing.T) {
	_, err := New(vrfProgram, diceProgram).Derive(ledger.PublicKey{})
	assert.ErrorIs(t, err, wager.ErrInvalidSeed)
}

func TestStatic(t *testing.T) {
	d := New(vrfProgram, diceProgram)
	s, err := d.Static("vault_dice_v2", "treasury_dice_v2", "config_agent_dice_v2")
	require.NoError(t, err)

	again, err := d.Static("vault_dice_v2", "treasury_dice_v2", "config_agent_dice_v2")
	require.NoError(t, err)
	assert.Equal(t, s, again)

	all := map[ledger.PublicKey]bool{s.Vault: true, s.Treasury: true, s.Config: true, s.NetworkState: true}
	assert.Len(t, all, 4)

	ns, _, err := ledger.FindProgramAddress([][]byte{[]byte("orao-vrf-network-configuration")}, vrfProgram)
	require.NoError(t, err)
	assert.Equal(t, ns, s.NetworkState)

	_, err = d.Static("", "treasury_dice_v2", "config_agent_dice_v2")
	assert.ErrorIs(t, err, wager.ErrValidation)
}

func TestParseSeed(t *testing.T) {
	seed, err := NewSeed()
	require.NoError(t, err)

	got, err := ParseSeed(seed.String())
	require.NoError(t, err)
	assert.Equal(t, seed, got)

	got, err = ParseSeed(base64.StdEncoding.EncodeToString(seed[:]))
	require.NoError(t, err)
	assert.Equal(t, seed, got)

	for _, bad := range []string{"", "   ", "not-a-seed", base64.StdEncoding.EncodeToString([]byte("short"))} {
		_, err := ParseSeed(bad)
		assert.ErrorIs(t, err, wager.ErrInvalidSeed, bad)
	}
}
