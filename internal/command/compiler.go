package command

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// Dictionary applies learned word substitutions to a token sequence before
// grammar matching. Implementations must be safe for concurrent use.
type Dictionary interface {
	// Apply returns the token sequence with every exact-match substitution
	// applied. The input slice is not modified.
	Apply(tokens []string) []string
}

// pattern pairs a compiled regex over the normalized utterance with a builder
// producing the command from its submatches.
type pattern struct {
	// name is a human-readable label for logging and tests.
	name string

	regex *regexp.Regexp

	// build constructs the command from the submatch slice. ok=false means
	// a value failed to parse and the next pattern should be tried.
	// outOfRange=true means the structure matched but an index is beyond
	// the console's bounds.
	build func(c *Compiler, m []string) (cmd Command, ok bool, outOfRange bool)
}

// Compiler matches normalized utterances against the console grammar.
//
// The only mutable state is the channel-label table populated by compiled
// channel-label commands; everything else is read-only after construction.
// All methods are safe for concurrent use.
type Compiler struct {
	patterns []pattern

	mu     sync.RWMutex
	labels map[string]int // spoken label → one-based channel number
}

// New returns a Compiler with the built-in grammar.
func New() *Compiler {
	c := &Compiler{labels: make(map[string]int)}
	c.patterns = builtinPatterns()
	return c
}

// Compile translates tokens into console commands. dict may be nil.
//
// Steps, in order:
//  1. Dictionary substitution, token-by-token, independent of the grammar.
//  2. Normalization: case and diacritic folding, filler removal, number
//     words to digits, unit and target synonyms.
//  3. Compound splitting on conjunction tokens, with channel-context
//     inheritance and pronoun substitution across parts.
//  4. Grammar matching in priority order per part, then clamping.
//
// Token sequences shorter than [MinTokens] never match.
func (c *Compiler) Compile(tokens []string, dict Dictionary) Result {
	if dict != nil {
		tokens = dict.Apply(tokens)
	}
	if len(tokens) < MinTokens {
		return Result{Reason: FailNoGrammarMatch}
	}
	norm := Normalize(tokens)
	if len(norm) == 0 || joinedLen(norm) > MaxUtteranceLen {
		return Result{Reason: FailNoGrammarMatch}
	}

	parts := splitCompound(norm)
	if len(parts) > 1 {
		return c.compileCompound(parts)
	}
	return c.compileOne(norm)
}

// compileOne matches a single normalized token sequence against the grammar.
func (c *Compiler) compileOne(tokens []string) Result {
	if len(tokens) == 0 {
		return Result{Reason: FailNoGrammarMatch}
	}
	text := strings.Join(tokens, " ")

	sawOutOfRange := false
	for _, p := range c.patterns {
		m := p.regex.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		cmd, ok, outOfRange := p.build(c, m)
		if outOfRange {
			sawOutOfRange = true
			continue
		}
		if !ok {
			continue
		}
		if cmd.Kind == KindChannelLabel {
			c.rememberLabel(cmd.Label, cmd.Target+1)
		}
		return Result{Commands: []Command{cmd}}
	}

	// Instrument-contextual fallback: resolve a spoken instrument to its
	// channel and retry with the explicit form.
	if resolved, ok := c.resolveInstrument(tokens); ok {
		if res := c.compileOne(resolved); res.OK() {
			return res
		}
	}

	if sawOutOfRange {
		return Result{Reason: FailOutOfRange}
	}
	return Result{Reason: FailNoGrammarMatch}
}

// rememberLabel records a spoken channel label for later contextual lookup.
func (c *Compiler) rememberLabel(label string, channel int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.labels[strings.ToLower(label)] = channel
}

// Labels returns a copy of the current label table (spoken label →
// one-based channel). Intended for status surfaces and tests.
func (c *Compiler) Labels() map[string]int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]int, len(c.labels))
	for k, v := range c.labels {
		out[k] = v
	}
	return out
}

// resolveInstrument finds the longest instrument phrase in tokens and
// replaces it with "channel N". Lookup order: session labels, then alias
// folding, then the default instrument assignment table.
func (c *Compiler) resolveInstrument(tokens []string) ([]string, bool) {
	// Longest phrases first so "bass drum" wins over "bass".
	for n := 3; n >= 1; n-- {
		for i := 0; i+n <= len(tokens); i++ {
			phrase := strings.Join(tokens[i:i+n], " ")
			ch, ok := c.channelForInstrument(phrase)
			if !ok {
				continue
			}
			out := make([]string, 0, len(tokens)+1)
			out = append(out, tokens[:i]...)
			out = append(out, "channel", strconv.Itoa(ch))
			out = append(out, tokens[i+n:]...)
			return out, true
		}
	}
	return nil, false
}

// channelForInstrument maps a spoken instrument phrase to its one-based
// channel number.
func (c *Compiler) channelForInstrument(phrase string) (int, bool) {
	c.mu.RLock()
	ch, ok := c.labels[phrase]
	c.mu.RUnlock()
	if ok {
		return ch, true
	}
	canonical := phrase
	if alias, ok := instrumentAliases[phrase]; ok {
		canonical = alias
	}
	if ch, ok = defaultInstrumentChannels[canonical]; ok {
		return ch, true
	}
	if near, ok := fuzzyInstrument(phrase); ok {
		ch, ok = defaultInstrumentChannels[near]
		return ch, ok
	}
	return 0, false
}

// ─── Grammar ─────────────────────────────────────────────────────────────────

// builtinPatterns returns the grammar in priority order: explicit numeric
// commands first so a relative rule ("bring up channel 4") can never shadow
// an explicit one ("set channel 4 to -6").
func builtinPatterns() []pattern {
	return []pattern{
		{
			name:  "fader-set",
			regex: regexp.MustCompile(`^(?:set |put |park |dial in )?channel (\d+) (?:to|at) (.+)$`),
			build: func(c *Compiler, m []string) (Command, bool, bool) {
				ch, ok := channelIndex(m[1])
				if !ok {
					return Command{}, false, true
				}
				lvl, ok := parseLevel(m[2])
				if !ok {
					return Command{}, false, false
				}
				return Command{Kind: KindFaderLevel, Target: ch, AuxTarget: NoAux, Level: clampLevel(lvl)}, true, false
			},
		},
		{
			name:  "routing-send",
			regex: regexp.MustCompile(`^(?:(?:send|route|add|patch|feed|mult|tie|connect|link|set|put) )?channel (\d+) (?:to|into|with) mix (\d+)(?: at (.+))?$`),
			build: func(c *Compiler, m []string) (Command, bool, bool) {
				ch, okCh := channelIndex(m[1])
				mix, okMix := mixIndex(m[2])
				if !okCh || !okMix {
					return Command{}, false, true
				}
				cmd := Command{Kind: KindRoutingSend, Target: ch, AuxTarget: mix}
				if m[3] != "" {
					lvl, ok := parseLevel(m[3])
					if !ok {
						return Command{}, false, false
					}
					cmd.Level = clampLevel(lvl)
				}
				return cmd, true, false
			},
		},
		{
			name:  "pan",
			regex: regexp.MustCompile(`^pan channel (\d+) (?:to )?(.+)$`),
			build: func(c *Compiler, m []string) (Command, bool, bool) {
				ch, ok := channelIndex(m[1])
				if !ok {
					return Command{}, false, true
				}
				pan, ok := parsePan(m[2])
				if !ok {
					return Command{}, false, false
				}
				return Command{Kind: KindPan, Target: ch, AuxTarget: NoAux, Pan: pan}, true, false
			},
		},
		{
			name:  "effects-send",
			regex: regexp.MustCompile(`^(?:add|send|give|feed) channel (\d+) (?:to |some )?(reverb|verb|hall|plate|room|delay|echo|slapback)$`),
			build: func(c *Compiler, m []string) (Command, bool, bool) {
				ch, ok := channelIndex(m[1])
				if !ok {
					return Command{}, false, true
				}
				return Command{Kind: KindEffectsSend, Target: ch, AuxTarget: effectsBus(m[2])}, true, false
			},
		},
		{
			name:  "mute",
			regex: regexp.MustCompile(`^(?:mute|kill|lose|ditch|bury|dump|turn off) channel (\d+)$`),
			build: func(c *Compiler, m []string) (Command, bool, bool) {
				ch, ok := channelIndex(m[1])
				if !ok {
					return Command{}, false, true
				}
				return Command{Kind: KindMute, Target: ch, AuxTarget: NoAux, On: false}, true, false
			},
		},
		{
			name:  "unmute",
			regex: regexp.MustCompile(`^(?:unmute|restore|open|bring back|turn on) channel (\d+)$`),
			build: func(c *Compiler, m []string) (Command, bool, bool) {
				ch, ok := channelIndex(m[1])
				if !ok {
					return Command{}, false, true
				}
				return Command{Kind: KindMute, Target: ch, AuxTarget: NoAux, On: true}, true, false
			},
		},
		{
			name:  "scene-store",
			regex: regexp.MustCompile(`^(?:store|save) scene (\d+)$`),
			build: func(c *Compiler, m []string) (Command, bool, bool) {
				sc, ok := sceneIndex(m[1])
				if !ok {
					return Command{}, false, true
				}
				return Command{Kind: KindSceneStore, Target: sc, AuxTarget: NoAux}, true, false
			},
		},
		{
			name:  "scene-recall",
			regex: regexp.MustCompile(`^(?:recall|load|go to|switch to|call up) scene (\d+)$`),
			build: func(c *Compiler, m []string) (Command, bool, bool) {
				sc, ok := sceneIndex(m[1])
				if !ok {
					return Command{}, false, true
				}
				return Command{Kind: KindSceneRecall, Target: sc, AuxTarget: NoAux}, true, false
			},
		},
		{
			name:  "dca-set",
			regex: regexp.MustCompile(`^(?:set |put )?dca (\d+) (?:to|at) (.+)$`),
			build: func(c *Compiler, m []string) (Command, bool, bool) {
				d, ok := dcaIndex(m[1])
				if !ok {
					return Command{}, false, true
				}
				lvl, ok := parseLevel(m[2])
				if !ok {
					return Command{}, false, false
				}
				return Command{Kind: KindDCALevel, Target: d, AuxTarget: NoAux, Level: clampLevel(lvl)}, true, false
			},
		},
		{
			name:  "dca-mute",
			regex: regexp.MustCompile(`^(?:mute|kill|turn off) dca (\d+)$`),
			build: func(c *Compiler, m []string) (Command, bool, bool) {
				d, ok := dcaIndex(m[1])
				if !ok {
					return Command{}, false, true
				}
				return Command{Kind: KindDCAMute, Target: d, AuxTarget: NoAux, On: false}, true, false
			},
		},
		{
			name:  "dca-unmute",
			regex: regexp.MustCompile(`^(?:unmute|restore|turn on) dca (\d+)$`),
			build: func(c *Compiler, m []string) (Command, bool, bool) {
				d, ok := dcaIndex(m[1])
				if !ok {
					return Command{}, false, true
				}
				return Command{Kind: KindDCAMute, Target: d, AuxTarget: NoAux, On: true}, true, false
			},
		},
		{
			name:  "channel-label",
			regex: regexp.MustCompile(`^(?:name|label|call) channel (\d+) (?:as )?(.+)$`),
			build: func(c *Compiler, m []string) (Command, bool, bool) {
				ch, ok := channelIndex(m[1])
				if !ok {
					return Command{}, false, true
				}
				label := strings.TrimSpace(m[2])
				if label == "" {
					return Command{}, false, false
				}
				return Command{Kind: KindChannelLabel, Target: ch, AuxTarget: NoAux, Label: label}, true, false
			},
		},
		// Relative rules last: they only fire when nothing explicit matched.
		{
			name:  "fader-nudge-up",
			regex: regexp.MustCompile(`^(?:bring up|pull up|push up|bump up|nudge up|crank) channel (\d+)$`),
			build: func(c *Compiler, m []string) (Command, bool, bool) {
				ch, ok := channelIndex(m[1])
				if !ok {
					return Command{}, false, true
				}
				return Command{Kind: KindFaderLevel, Target: ch, AuxTarget: NoAux, Level: 300}, true, false
			},
		},
		{
			name:  "fader-nudge-down",
			regex: regexp.MustCompile(`^(?:bring down|pull down|push down|bump down|nudge down|take down) channel (\d+)$`),
			build: func(c *Compiler, m []string) (Command, bool, bool) {
				ch, ok := channelIndex(m[1])
				if !ok {
					return Command{}, false, true
				}
				return Command{Kind: KindFaderLevel, Target: ch, AuxTarget: NoAux, Level: -600}, true, false
			},
		},
	}
}

// ─── Index and value parsing ────────────────────────────────────────────────

// channelIndex converts a one-based spoken channel number to a zero-based
// index, reporting false when out of range.
func channelIndex(token string) (int, bool) {
	n, ok := parseDigits(token)
	if !ok || n < 1 || n > MaxChannels {
		return 0, false
	}
	return n - 1, true
}

func mixIndex(token string) (int, bool) {
	n, ok := parseDigits(token)
	if !ok || n < 1 || n > MaxMixes {
		return 0, false
	}
	return n - 1, true
}

func sceneIndex(token string) (int, bool) {
	n, ok := parseDigits(token)
	if !ok || n < 1 || n > MaxScenes {
		return 0, false
	}
	return n - 1, true
}

func dcaIndex(token string) (int, bool) {
	n, ok := parseDigits(token)
	if !ok || n < 1 || n > MaxDCAs {
		return 0, false
	}
	return n - 1, true
}

// levelPattern matches a signed decimal dB expression in normalized text,
// e.g. "minus 6", "-6 db", "3.5 db".
var levelPattern = regexp.MustCompile(`^(minus |negative |-)?(\d+)(?:\.(\d))?(?: ?db)?$`)

// parseLevel parses a spoken level expression into fixed-point dB×100.
// Keywords ("unity", "hot", "off") win over numeric parsing.
func parseLevel(text string) (int, bool) {
	text = strings.TrimSpace(text)
	if v, ok := dbKeywords[text]; ok {
		return v, true
	}
	m := levelPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	whole, _ := parseDigits(m[2])
	v := whole * 100
	if m[3] != "" {
		frac, _ := parseDigits(m[3])
		v += frac * 10
	}
	if m[1] != "" {
		v = -v
	}
	return v, true
}

// parsePan parses a spoken pan expression: a position phrase ("hard left")
// or a signed number, clamped into [PanMin, PanMax].
func parsePan(text string) (int, bool) {
	text = strings.TrimSpace(text)
	if v, ok := panPositions[text]; ok {
		return v, true
	}
	m := regexp.MustCompile(`^(minus |-)?(\d+)$`).FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v, _ := parseDigits(m[2])
	if m[1] != "" {
		v = -v
	}
	return clampPan(v), true
}

// effectsBus maps a spoken effect name to the zero-based effects bus index:
// reverb variants on bus 0, delay variants on bus 1.
func effectsBus(effect string) int {
	switch effect {
	case "delay", "echo", "slapback":
		return 1
	default:
		return 0
	}
}

// joinedLen returns the length of the tokens joined with single spaces,
// without allocating the joined string.
func joinedLen(tokens []string) int {
	n := 0
	for _, t := range tokens {
		n += len(t) + 1
	}
	if n > 0 {
		n--
	}
	return n
}
