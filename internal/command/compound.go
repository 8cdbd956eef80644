package command

// Compound utterances chain several operations in one breath: "mute channel
// three and recall scene two", "set channel 4 to unity then pan it hard
// left". The splitter divides the normalized token stream on conjunction
// tokens; later parts inherit the first part's channel context so pronouns
// and bare actions resolve against the channel the operator just addressed.

// conjunctions are the tokens that separate parts of a compound utterance.
var conjunctions = map[string]struct{}{
	"and": {}, "then": {}, "also": {}, "plus": {},
}

// pronouns resolve to the inherited channel context.
var pronouns = map[string]struct{}{
	"it": {}, "that": {}, "this": {},
}

// actionVerbs open a part that may inherit a channel target when it names
// none of its own.
var actionVerbs = map[string]struct{}{
	"set": {}, "put": {}, "bring": {}, "pull": {}, "push": {}, "bump": {},
	"nudge": {}, "crank": {}, "mute": {}, "unmute": {}, "kill": {},
	"restore": {}, "pan": {}, "send": {}, "route": {}, "add": {},
	"patch": {}, "feed": {},
}

// splitCompound divides tokens into parts at conjunction tokens. Adjacent
// conjunctions ("and then") collapse into a single boundary. A sequence with
// no conjunctions comes back as a single part.
func splitCompound(tokens []string) [][]string {
	var parts [][]string
	var cur []string
	for _, t := range tokens {
		if _, ok := conjunctions[t]; ok {
			if len(cur) > 0 {
				parts = append(parts, cur)
				cur = nil
			}
			continue
		}
		cur = append(cur, t)
	}
	if len(cur) > 0 {
		parts = append(parts, cur)
	}
	return parts
}

// compileCompound compiles each part, applying channel-context inheritance
// from the first part to the rest. The result succeeds when at least one
// part compiles; its Commands hold every compiled part in order.
func (c *Compiler) compileCompound(parts [][]string) Result {
	ctx := extractChannelContext(parts[0])

	var commands []Command
	sawOutOfRange := false
	for i, part := range parts {
		if i > 0 && ctx != "" {
			part = applyChannelContext(part, ctx)
		}
		res := c.compileOne(part)
		if res.OK() {
			commands = append(commands, res.Commands...)
			// A later part may redefine the context ("…then set channel 7…").
			if next := extractChannelContext(part); next != "" {
				ctx = next
			}
			continue
		}
		if res.Reason == FailOutOfRange {
			sawOutOfRange = true
		}
	}

	if len(commands) > 0 {
		return Result{Commands: commands}
	}
	if sawOutOfRange {
		return Result{Reason: FailOutOfRange}
	}
	return Result{Reason: FailNoGrammarMatch}
}

// extractChannelContext returns the channel number token from the first
// "channel N" occurrence, or "" when the part has no explicit channel.
func extractChannelContext(tokens []string) string {
	for i := 0; i+1 < len(tokens); i++ {
		if tokens[i] == "channel" {
			if _, ok := parseDigits(tokens[i+1]); ok {
				return tokens[i+1]
			}
		}
	}
	return ""
}

// applyChannelContext substitutes pronouns with the inherited channel and,
// when the part opens with an action verb and still names no target,
// prepends the channel reference ("pan hard left" → "pan channel 4 hard
// left" is handled by pronoun or prepend, whichever applies).
func applyChannelContext(tokens []string, channel string) []string {
	out := make([]string, 0, len(tokens)+2)
	substituted := false
	for _, t := range tokens {
		if _, ok := pronouns[t]; ok && !substituted {
			out = append(out, "channel", channel)
			substituted = true
			continue
		}
		out = append(out, t)
	}
	if substituted || hasExplicitTarget(out) {
		return out
	}
	if len(out) == 0 {
		return out
	}
	if _, ok := actionVerbs[out[0]]; !ok {
		return out
	}
	// "pan hard left" → "pan channel 4 hard left"
	withCtx := make([]string, 0, len(out)+2)
	withCtx = append(withCtx, out[0], "channel", channel)
	withCtx = append(withCtx, out[1:]...)
	return withCtx
}

// hasExplicitTarget reports whether tokens already name a channel, mix,
// scene, or DCA target.
func hasExplicitTarget(tokens []string) bool {
	for _, t := range tokens {
		switch t {
		case "channel", "mix", "scene", "dca":
			return true
		}
	}
	return false
}
