package syncroot

import (
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCommandSlotLimits(t *testing.T) {
	tests := []struct {
		name      string
		nameLen   int
		acctLen   int
		dirLen    int
		wantField string
		wantMax   int
	}{
		{"all empty", 0, 0, 0, "", 0},
		{"all at limit", 49, 49, 499, "", 0},
		{"name over", 50, 1, 1, FieldName, 49},
		{"account over", 1, 50, 1, FieldAccountID, 49},
		{"directory over", 1, 1, 500, FieldDirectory, 499},
		{"name reported first", 60, 60, 600, FieldName, 49},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := BuildCommand(
				strings.Repeat("n", tt.nameLen),
				strings.Repeat("a", tt.acctLen),
				strings.Repeat("d", tt.dirLen),
				PolicyFull,
			)
			if tt.wantField == "" {
				require.NoError(t, err)
				require.NotNil(t, cmd)
				return
			}

			var tooLong *FieldTooLongError
			require.True(t, errors.As(err, &tooLong), "got %v", err)
			assert.Equal(t, tt.wantField, tooLong.Field)
			assert.Equal(t, tt.wantMax, tooLong.MaxLength)
			assert.True(t, IsValidation(err))
		})
	}
}

func TestBuildCommandCountsBytes(t *testing.T) {
	// 25 two-byte runes: 50 bytes, one more than the slot allows.
	_, err := BuildCommand(strings.Repeat("é", 25), "acct", "/d", PolicyFull)
	var tooLong *FieldTooLongError
	require.ErrorAs(t, err, &tooLong)
	assert.Equal(t, 50, tooLong.Length)
}

func TestBuildCommandRejectsNUL(t *testing.T) {
	_, err := BuildCommand("Se\x00ki", "acct", "/d", PolicyFull)
	var invalid *InvalidFieldError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, FieldName, invalid.Field)
}

func TestBuildCommandRejectsUnknownPolicy(t *testing.T) {
	_, err := BuildCommand("n", "a", "/d", PopulationPolicy(7))
	var invalid *InvalidFieldError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, FieldPopulationPolicy, invalid.Field)
}

func TestMarshalLayout(t *testing.T) {
	cmd, err := BuildCommand("Seki", "acct-1", "/home/u/SyncRoot", PolicyOnDemand)
	require.NoError(t, err)

	wire, err := cmd.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, wire, CommandSize)
	assert.Equal(t, 604, CommandSize)

	assert.Equal(t, "Seki", string(wire[0:4]))
	assert.Equal(t, make([]byte, NameSlot-4), wire[4:NameSlot])
	assert.Equal(t, "acct-1", string(wire[50:56]))
	assert.Equal(t, byte(0), wire[56])
	assert.Equal(t, "/home/u/SyncRoot", string(wire[100:116]))
	assert.Equal(t, byte(0), wire[599])
	assert.Equal(t, uint32(PolicyOnDemand), binary.LittleEndian.Uint32(wire[600:]))
}

func TestMarshalFullPolicyTag(t *testing.T) {
	cmd, err := BuildCommand("n", "a", "/d", PolicyFull)
	require.NoError(t, err)
	wire, err := cmd.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 0, 0, 0}, wire[600:])
}

func TestCommandRoundTrip(t *testing.T) {
	regs := []Registration{
		{Name: "Seki", AccountID: "acct-1", Directory: "/home/u/SyncRoot", Policy: PolicyOnDemand},
		{Name: strings.Repeat("x", 49), AccountID: strings.Repeat("y", 49), Directory: strings.Repeat("z", 499), Policy: PolicyFull},
		{Name: "", AccountID: "", Directory: "", Policy: PolicyFull},
		{Name: "Fotos ☀", AccountID: "ü@example.com", Directory: `C:\Users\u\Cloud`, Policy: PolicyOnDemand},
	}

	for _, reg := range regs {
		cmd, err := BuildCommand(reg.Name, reg.AccountID, reg.Directory, reg.Policy)
		require.NoError(t, err)
		wire, err := cmd.MarshalBinary()
		require.NoError(t, err)

		decoded, err := UnmarshalCommand(wire)
		require.NoError(t, err)
		assert.Equal(t, reg, decoded.Registration())
	}
}

func TestUnmarshalCommandErrors(t *testing.T) {
	_, err := UnmarshalCommand(make([]byte, CommandSize-1))
	assert.Error(t, err)

	unterminated := make([]byte, CommandSize)
	for i := 0; i < NameSlot; i++ {
		unterminated[i] = 'x'
	}
	_, err = UnmarshalCommand(unterminated)
	var invalid *InvalidFieldError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, FieldName, invalid.Field)

	badTag := make([]byte, CommandSize)
	binary.LittleEndian.PutUint32(badTag[600:], 9)
	_, err = UnmarshalCommand(badTag)
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, FieldPopulationPolicy, invalid.Field)
}

func TestParsePopulationPolicy(t *testing.T) {
	tests := []struct {
		in   string
		want PopulationPolicy
		ok   bool
	}{
		{"full", PolicyFull, true},
		{"Full", PolicyFull, true},
		{"ondemand", PolicyOnDemand, true},
		{"partial", PolicyOnDemand, true},
		{" on-demand ", PolicyOnDemand, true},
		{"lazy", 0, false},
	}
	for _, tt := range tests {
		got, err := ParsePopulationPolicy(tt.in)
		if !tt.ok {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
	assert.Equal(t, "ondemand", PolicyOnDemand.String())
	assert.Equal(t, "full", PolicyFull.String())
}
