// Package replay decodes recorded fights from their delta-compressed,
// short-keyed wire format into fully expanded frames.
package replay

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

var (
	ErrMalformedPayload = errors.New("replay payload not parseable")
	ErrMissingMetadata  = errors.New("replay metadata missing")
	ErrMissingFrames    = errors.New("replay frames missing")
)

// Metadata describes one recorded fight. Immutable once decoded.
type Metadata struct {
	Version        string
	ArenaWidth     float64
	ArenaHeight    float64
	GroundLevel    float64
	MaxFrames      int
	TotalFrames    int
	TimestampStart string
	TimestampEnd   string
	Duration       float64
	Winner         int
	Player1Fighter string
	Player2Fighter string
	// Extra holds keys the expansion table does not know about. They
	// pass through unchanged so newer servers stay readable.
	Extra map[string]any
}

// PlayerState is the fully expanded state of one player at one frame.
type PlayerState struct {
	X, Y           float64
	VelX, VelY     float64
	Health         float64
	FacingRight    bool
	Action         int
	StateFrame     int
	Grounded       bool
	AttackCooldown int
	BlockCooldown  int
	JumpCooldown   int
	StunFrames     int
	Flags          StateFlags
}

// Frame holds both player slots at one tick.
type Frame struct {
	Index   int
	Players [2]PlayerState
}

// Replay is a decoded fight: metadata plus the reconstructed frame
// sequence. Read-only to consumers.
type Replay struct {
	Metadata Metadata
	Frames   []Frame
}

// metadataKeys expands the short metadata keys to their full names.
var metadataKeys = map[string]string{
	"v":  "version",
	"aw": "arena_width",
	"ah": "arena_height",
	"gl": "ground_level",
	"mf": "max_frames",
	"tf": "total_frames",
	"ts": "timestamp_start",
	"te": "timestamp_end",
	"d":  "duration_seconds",
	"w":  "winner",
	"p1": "player1_fighter",
	"p2": "player2_fighter",
}

type wireFrame struct {
	F int                       `json:"f"`
	P map[string]map[string]any `json:"p"`
}

// Decode expands a replay payload into typed frames. Reconstruction is
// stateful and strictly sequential: each delta overwrites a clone of the
// previous full state for that player slot, and the merged result
// becomes the base for the next frame. A slot absent from a frame's
// delta inherits the previous slot unchanged.
func Decode(raw []byte) (*Replay, error) {
	var payload struct {
		Metadata map[string]any    `json:"metadata"`
		Frames   []json.RawMessage `json:"frames"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if payload.Metadata == nil {
		return nil, ErrMissingMetadata
	}
	if payload.Frames == nil {
		return nil, ErrMissingFrames
	}

	frames := make([]Frame, 0, len(payload.Frames))
	var prev [2]PlayerState
	for i, rawFrame := range payload.Frames {
		var wf wireFrame
		if err := json.Unmarshal(rawFrame, &wf); err != nil {
			return nil, fmt.Errorf("%w: frame %d: %v", ErrMalformedPayload, i, err)
		}
		fr := Frame{Index: wf.F}
		for slot := 0; slot < 2; slot++ {
			delta, ok := wf.P[strconv.Itoa(slot+1)]
			if !ok {
				fr.Players[slot] = prev[slot]
				continue
			}
			st, err := applyDelta(prev[slot], delta)
			if err != nil {
				return nil, fmt.Errorf("frame %d player %d: %w", wf.F, slot+1, err)
			}
			fr.Players[slot] = st
			prev[slot] = st
		}
		frames = append(frames, fr)
	}

	md := expandMetadata(payload.Metadata)
	if md.TotalFrames == 0 {
		md.TotalFrames = len(frames)
	}
	return &Replay{Metadata: md, Frames: frames}, nil
}

// applyDelta overwrites exactly the fields named in the delta. Unknown
// keys are skipped, not errors.
func applyDelta(prev PlayerState, delta map[string]any) (PlayerState, error) {
	st := prev
	for k, v := range delta {
		switch k {
		case "x":
			st.X = asFloat(v)
		case "y":
			st.Y = asFloat(v)
		case "vx":
			st.VelX = asFloat(v)
		case "vy":
			st.VelY = asFloat(v)
		case "h":
			st.Health = asFloat(v)
		case "fr":
			st.FacingRight = asBool(v)
		case "a":
			st.Action = asInt(v)
		case "sf":
			st.StateFrame = asInt(v)
		case "g":
			st.Grounded = asBool(v)
		case "ac":
			st.AttackCooldown = asInt(v)
		case "bc":
			st.BlockCooldown = asInt(v)
		case "jc":
			st.JumpCooldown = asInt(v)
		case "st":
			st.StunFrames = asInt(v)
		case "flags":
			f, err := DecodeFlags(asInt(v))
			if err != nil {
				return PlayerState{}, err
			}
			st.Flags = f
		}
	}
	return st, nil
}

func expandMetadata(raw map[string]any) Metadata {
	md := Metadata{Extra: map[string]any{}}
	for k, v := range raw {
		if full, ok := metadataKeys[k]; ok {
			k = full
		}
		switch k {
		case "version":
			md.Version = asString(v)
		case "arena_width":
			md.ArenaWidth = asFloat(v)
		case "arena_height":
			md.ArenaHeight = asFloat(v)
		case "ground_level":
			md.GroundLevel = asFloat(v)
		case "max_frames":
			md.MaxFrames = asInt(v)
		case "total_frames":
			md.TotalFrames = asInt(v)
		case "timestamp_start":
			md.TimestampStart = asString(v)
		case "timestamp_end":
			md.TimestampEnd = asString(v)
		case "duration_seconds":
			md.Duration = asFloat(v)
		case "winner":
			md.Winner = asInt(v)
		case "player1_fighter":
			md.Player1Fighter = asString(v)
		case "player2_fighter":
			md.Player2Fighter = asString(v)
		default:
			md.Extra[k] = v
		}
	}
	return md
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case json.Number:
		f, _ := n.Float64()
		return f
	case int:
		return float64(n)
	default:
		return 0
	}
}

func asInt(v any) int {
	return int(asFloat(v))
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return ""
	}
}
