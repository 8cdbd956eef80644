// Package command implements the rule-based compiler that turns normalized
// speech tokens into validated mixing-console commands.
//
// Compilation is a pure function over a token sequence: dictionary
// substitutions are applied first (so learned corrections affect every
// grammar rule), then tokens are normalized (number words, unit and target
// synonyms, diacritic folding), and finally a declarative pattern set is
// matched in a fixed priority order — explicit numeric commands before
// relative ones, relative ones before instrument-contextual ones. Numeric
// payloads are clamped into the console's valid ranges; only an index beyond
// the device's channel/mix/scene/DCA count is an unrecoverable failure.
package command

import "fmt"

// Kind identifies the action a [Command] performs on the console.
type Kind int

const (
	// KindFaderLevel sets an input channel fader to an absolute level.
	KindFaderLevel Kind = iota

	// KindMute toggles an input channel's on/off state.
	KindMute

	// KindSceneRecall recalls a stored scene.
	KindSceneRecall

	// KindSceneStore stores the current console state to a scene slot.
	KindSceneStore

	// KindRoutingSend routes a channel into a mix bus, optionally at a level.
	KindRoutingSend

	// KindPan positions a channel in the stereo field.
	KindPan

	// KindEffectsSend feeds a channel into an effects bus.
	KindEffectsSend

	// KindDCALevel sets a DCA group fader to an absolute level.
	KindDCALevel

	// KindDCAMute toggles a DCA group's on/off state.
	KindDCAMute

	// KindChannelLabel assigns a spoken name to a channel.
	KindChannelLabel
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindFaderLevel:
		return "fader-level"
	case KindMute:
		return "mute"
	case KindSceneRecall:
		return "scene-recall"
	case KindSceneStore:
		return "scene-store"
	case KindRoutingSend:
		return "routing-send"
	case KindPan:
		return "pan"
	case KindEffectsSend:
		return "effects-send"
	case KindDCALevel:
		return "dca-level"
	case KindDCAMute:
		return "dca-mute"
	case KindChannelLabel:
		return "channel-label"
	default:
		return "unknown"
	}
}

// Console bounds. Indices are validated against these after parsing;
// levels and pan values are clamped rather than rejected.
const (
	// MaxChannels is the number of input channels on the target console.
	MaxChannels = 40

	// MaxMixes is the number of mix buses.
	MaxMixes = 20

	// MaxScenes is the number of scene memory slots.
	MaxScenes = 100

	// MaxDCAs is the number of DCA groups.
	MaxDCAs = 8

	// LevelMin and LevelMax bound fader levels in fixed-point dB×100.
	LevelMin = -6000
	LevelMax = 1000

	// LevelOff is the console's -∞ sentinel, below the normal clamp range.
	LevelOff = -32768

	// PanMin and PanMax bound pan values (hard left … hard right).
	PanMin = -63
	PanMax = 63

	// NoAux marks AuxTarget as unused.
	NoAux = -1

	// MinTokens is the shortest token sequence any grammar rule accepts.
	// Shorter utterances are never commands and never enter retry comparison.
	MinTokens = 3

	// MaxUtteranceLen bounds the joined utterance length accepted by the
	// compiler. Longer input is rejected unparsed.
	MaxUtteranceLen = 200
)

// Command is a validated, structured console action. All numeric fields are
// in range after compilation: Target and AuxTarget are zero-based indices,
// Level is fixed-point dB×100 within [LevelMin, LevelMax] (or LevelOff), and
// Pan is within [PanMin, PanMax].
type Command struct {
	Kind Kind

	// Target is the zero-based channel, DCA, or scene index.
	Target int

	// AuxTarget is the zero-based mix index for routing and effects sends,
	// or NoAux.
	AuxTarget int

	// Level is the fixed-point dB value for fader, DCA, and send commands.
	Level int

	// Pan is the stereo position for pan commands.
	Pan int

	// On is the channel/DCA state for mute commands (false = muted).
	On bool

	// Label is the assigned name for channel-label commands.
	Label string
}

// Describe returns a short human-readable summary of the command using
// one-based indices as an operator would speak them.
func (c Command) Describe() string {
	switch c.Kind {
	case KindFaderLevel:
		return fmt.Sprintf("set channel %d to %.1f dB", c.Target+1, float64(c.Level)/100)
	case KindMute:
		if c.On {
			return fmt.Sprintf("unmute channel %d", c.Target+1)
		}
		return fmt.Sprintf("mute channel %d", c.Target+1)
	case KindSceneRecall:
		return fmt.Sprintf("recall scene %d", c.Target+1)
	case KindSceneStore:
		return fmt.Sprintf("store scene %d", c.Target+1)
	case KindRoutingSend:
		if c.Level != 0 {
			return fmt.Sprintf("send channel %d to mix %d at %.1f dB", c.Target+1, c.AuxTarget+1, float64(c.Level)/100)
		}
		return fmt.Sprintf("send channel %d to mix %d", c.Target+1, c.AuxTarget+1)
	case KindPan:
		return fmt.Sprintf("pan channel %d to %d", c.Target+1, c.Pan)
	case KindEffectsSend:
		return fmt.Sprintf("send channel %d to effects bus %d", c.Target+1, c.AuxTarget+1)
	case KindDCALevel:
		return fmt.Sprintf("set DCA %d to %.1f dB", c.Target+1, float64(c.Level)/100)
	case KindDCAMute:
		if c.On {
			return fmt.Sprintf("unmute DCA %d", c.Target+1)
		}
		return fmt.Sprintf("mute DCA %d", c.Target+1)
	case KindChannelLabel:
		return fmt.Sprintf("label channel %d %q", c.Target+1, c.Label)
	default:
		return "unknown command"
	}
}

// FailReason classifies why a token sequence did not compile.
type FailReason int

const (
	// FailNoGrammarMatch means no pattern matched — the utterance is simply
	// not a command yet. Recoverable and not surfaced to the user.
	FailNoGrammarMatch FailReason = iota

	// FailOutOfRange means a pattern matched but a target index is beyond
	// the console's bounds (e.g. channel 41 on a 40-channel desk).
	FailOutOfRange
)

// String returns the reason name.
func (r FailReason) String() string {
	switch r {
	case FailNoGrammarMatch:
		return "no-grammar-match"
	case FailOutOfRange:
		return "out-of-range"
	default:
		return "unknown"
	}
}

// Result is the outcome of one compile call: either a command or a failure
// reason. Compilation failures are values, not errors — a failed parse is an
// expected state that stays in the attempt history for retry comparison.
type Result struct {
	// Commands holds the compiled commands. Compound utterances ("mute
	// channel 3 and recall scene 2") yield one entry per part; simple
	// utterances yield exactly one.
	Commands []Command

	// Reason is meaningful only when Commands is empty.
	Reason FailReason
}

// OK reports whether compilation produced at least one command.
func (r Result) OK() bool {
	return len(r.Commands) > 0
}

// clampLevel clamps a fixed-point dB value into [LevelMin, LevelMax].
// LevelOff passes through: it is the explicit -∞ request, not an overshoot.
func clampLevel(v int) int {
	if v == LevelOff {
		return v
	}
	if v < LevelMin {
		return LevelMin
	}
	if v > LevelMax {
		return LevelMax
	}
	return v
}

// clampPan clamps a pan value into [PanMin, PanMax].
func clampPan(v int) int {
	if v < PanMin {
		return PanMin
	}
	if v > PanMax {
		return PanMax
	}
	return v
}
