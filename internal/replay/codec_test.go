package replay

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagsRoundTrip(t *testing.T) {
	for attack := SubNone; attack <= SubWait; attack++ {
		for block := SubNone; block <= SubWait; block++ {
			for jump := SubNone; jump <= SubWait; jump++ {
				for _, stunned := range []bool{false, true} {
					want := StateFlags{Attack: attack, Block: block, Jump: jump, Stunned: stunned}
					got, err := DecodeFlags(EncodeFlags(want))
					require.NoError(t, err)
					require.Equal(t, want, got)
				}
			}
		}
	}
}

func TestDecodeFlags_KnownPacking(t *testing.T) {
	// attack=active(2), block=startup(1), jump=wait(4), stunned
	packed := 2 | 1<<3 | 4<<6 | 1<<9
	f, err := DecodeFlags(packed)
	require.NoError(t, err)
	assert.Equal(t, SubActive, f.Attack)
	assert.Equal(t, SubStartup, f.Block)
	assert.Equal(t, SubWait, f.Jump)
	assert.True(t, f.Stunned)
	assert.Equal(t, packed, EncodeFlags(f))
}

func TestDecodeFlags_RejectsReservedBits(t *testing.T) {
	_, err := DecodeFlags(1024)
	require.Error(t, err)
	_, err = DecodeFlags(-1)
	require.Error(t, err)
}

func TestDecodeFlags_RejectsOutOfRangeSubState(t *testing.T) {
	// attack sub-state 7 fits in 3 bits but is not a defined value
	_, err := DecodeFlags(7)
	require.Error(t, err)
	// block sub-state 5
	_, err = DecodeFlags(5 << 3)
	require.Error(t, err)
}

func TestDecode_DeltaReconstruction(t *testing.T) {
	payload := `{
		"metadata": {"v":"1.0","aw":800,"gl":500,"mf":600,"w":1,"p1":"warrior","p2":"ninja"},
		"frames": [
			{"f":0,"p":{"1":{"x":0,"y":0,"h":100,"fr":true,"g":true},"2":{"x":600,"y":0,"h":80}}},
			{"f":1,"p":{"1":{"x":5},"2":{"h":70,"st":12}}}
		]
	}`
	rep, err := Decode([]byte(payload))
	require.NoError(t, err)
	require.Len(t, rep.Frames, 2)

	p1 := rep.Frames[1].Players[0]
	assert.Equal(t, 5.0, p1.X, "delta overwrites x")
	assert.Equal(t, 0.0, p1.Y, "absent keys keep previous value")
	assert.Equal(t, 100.0, p1.Health)
	assert.True(t, p1.FacingRight)
	assert.True(t, p1.Grounded)

	p2 := rep.Frames[1].Players[1]
	assert.Equal(t, 600.0, p2.X)
	assert.Equal(t, 70.0, p2.Health)
	assert.Equal(t, 12, p2.StunFrames)
}

func TestDecode_MissingSlotInheritsPreviousState(t *testing.T) {
	payload := `{
		"metadata": {"aw":800},
		"frames": [
			{"f":0,"p":{"1":{"x":1,"h":100},"2":{"x":2,"h":80,"vx":-1.5}}},
			{"f":1,"p":{"1":{"x":3},"2":{"x":4}}},
			{"f":2,"p":{"1":{"x":5}}}
		]
	}`
	rep, err := Decode([]byte(payload))
	require.NoError(t, err)
	require.Len(t, rep.Frames, 3)

	// player 2 absent at frame 2: state equals frame 1 exactly
	assert.Equal(t, rep.Frames[1].Players[1], rep.Frames[2].Players[1])
	assert.Equal(t, 4.0, rep.Frames[2].Players[1].X)
	assert.Equal(t, -1.5, rep.Frames[2].Players[1].VelX)
}

func TestDecode_EmptyDeltaKeepsSlotUnchanged(t *testing.T) {
	payload := `{
		"metadata": {"aw":800},
		"frames": [
			{"f":0,"p":{"1":{"x":1},"2":{"x":2,"h":80}}},
			{"f":1,"p":{"1":{"x":3},"2":{"h":60}}},
			{"f":2,"p":{"1":{"x":5},"2":{}}}
		]
	}`
	rep, err := Decode([]byte(payload))
	require.NoError(t, err)
	assert.Equal(t, rep.Frames[1].Players[1], rep.Frames[2].Players[1])
}

func TestDecode_MetadataShortKeys(t *testing.T) {
	payload := `{
		"metadata": {
			"v":"1.0","aw":800,"ah":600,"gl":500,"mf":600,"tf":2,
			"ts":"2025-01-01T10:00:00","te":"2025-01-01T10:00:10","d":10.5,
			"w":2,"p1":"warrior","p2":"ninja","experimental_field":true
		},
		"frames": [{"f":0,"p":{}},{"f":1,"p":{}}]
	}`
	rep, err := Decode([]byte(payload))
	require.NoError(t, err)

	md := rep.Metadata
	assert.Equal(t, "1.0", md.Version)
	assert.Equal(t, 800.0, md.ArenaWidth)
	assert.Equal(t, 600.0, md.ArenaHeight)
	assert.Equal(t, 500.0, md.GroundLevel)
	assert.Equal(t, 600, md.MaxFrames)
	assert.Equal(t, 2, md.TotalFrames)
	assert.Equal(t, "2025-01-01T10:00:00", md.TimestampStart)
	assert.Equal(t, 10.5, md.Duration)
	assert.Equal(t, 2, md.Winner)
	assert.Equal(t, "warrior", md.Player1Fighter)
	assert.Equal(t, "ninja", md.Player2Fighter)
	// unknown keys pass through unchanged
	assert.Equal(t, true, md.Extra["experimental_field"])
}

func TestDecode_FullKeyMetadataStillDecodes(t *testing.T) {
	payload := `{"metadata":{"arena_width":1024,"winner":1},"frames":[]}`
	rep, err := Decode([]byte(payload))
	require.NoError(t, err)
	assert.Equal(t, 1024.0, rep.Metadata.ArenaWidth)
	assert.Equal(t, 1, rep.Metadata.Winner)
}

func TestDecode_Errors(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		want    error
	}{
		{"not json", `{"metadata":`, ErrMalformedPayload},
		{"missing metadata", `{"frames":[]}`, ErrMissingMetadata},
		{"missing frames", `{"metadata":{"aw":800}}`, ErrMissingFrames},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode([]byte(tc.payload))
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestDecode_BadFlagsInFrameFailsThatReplay(t *testing.T) {
	payload := `{
		"metadata": {"aw":800},
		"frames": [{"f":0,"p":{"1":{"flags":2048}}}]
	}`
	_, err := Decode([]byte(payload))
	require.Error(t, err)
}

func TestDecode_FlagsFlowThroughDeltas(t *testing.T) {
	stunnedFlags := EncodeFlags(StateFlags{Attack: SubActive, Stunned: true})
	payload := `{
		"metadata": {"aw":800},
		"frames": [
			{"f":0,"p":{"1":{"flags":` + strconv.Itoa(stunnedFlags) + `}}},
			{"f":1,"p":{"1":{"x":3}}}
		]
	}`
	rep, err := Decode([]byte(payload))
	require.NoError(t, err)
	// flags persist across frames that do not touch them
	assert.Equal(t, SubActive, rep.Frames[1].Players[0].Flags.Attack)
	assert.True(t, rep.Frames[1].Players[0].Flags.Stunned)
}
