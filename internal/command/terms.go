package command

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// Terminology tables for professional audio speech. These cover the spoken
// vocabulary the grammar accepts: number words, dB keywords, pan positions,
// instrument aliases, and console slang.

// numberWords maps spoken number words to their numeric value. Hyphenated
// compounds ("twenty-one") are included because speech transcription commonly
// emits them as a single token.
var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14,
	"fifteen": 15, "sixteen": 16, "seventeen": 17, "eighteen": 18,
	"nineteen": 19, "twenty": 20, "twenty-one": 21, "twenty-two": 22,
	"twenty-three": 23, "twenty-four": 24, "twenty-five": 25,
	"twenty-six": 26, "twenty-seven": 27, "twenty-eight": 28,
	"twenty-nine": 29, "thirty": 30, "thirty-one": 31, "thirty-two": 32,
	"thirty-three": 33, "thirty-four": 34, "thirty-five": 35,
	"thirty-six": 36, "thirty-seven": 37, "thirty-eight": 38,
	"thirty-nine": 39, "forty": 40,
}

// dbKeywords maps spoken level descriptions to fixed-point dB values
// (display dB × 100). LevelOff is intentionally below the clamp range: it is
// the console's -∞ sentinel and passes through validation unchanged.
var dbKeywords = map[string]int{
	"unity":   0,
	"zero":    0,
	"nominal": 0,
	"off":     LevelOff,
	"kill":    LevelOff,
	"cut":     LevelOff,
	"hot":     300,
	"loud":    300,
	"cooking": 300,
	"pushing": 300,
	"boost":   600,
	"quiet":   -1000,
	"soft":    -1000,
	"low":     -1000,
	"park":    -1000,
	"back":    -600,
}

// panPositions maps spoken pan descriptions to console pan values in
// [PanMin, PanMax]. Keys are normalized (single spaces, lowercase).
var panPositions = map[string]int{
	"hard left":      PanMin,
	"full left":      PanMin,
	"left":           -32,
	"slightly left":  -16,
	"slight left":    -16,
	"little left":    -16,
	"center":         0,
	"centre":         0,
	"middle":         0,
	"dead center":    0,
	"centered":       0,
	"slightly right": 16,
	"slight right":   16,
	"little right":   16,
	"right":          32,
	"hard right":     PanMax,
	"full right":     PanMax,
}

// instrumentAliases folds spoken instrument shorthand onto canonical names
// used by defaultInstrumentChannels.
var instrumentAliases = map[string]string{
	"vocal":             "vocals",
	"vox":               "vocals",
	"lead vocal":        "vocals",
	"lead vocals":       "vocals",
	"background vocals": "vocals",
	"bg vocals":         "vocals",
	"kick drum":         "kick",
	"bass drum":         "kick",
	"bd":                "kick",
	"snare drum":        "snare",
	"sd":                "snare",
	"hi-hat":            "hihat",
	"hh":                "hihat",
	"hat":               "hihat",
	"bass guitar":       "bass",
	"di":                "bass",
	"electric guitar":   "guitar",
	"gtr":               "guitar",
	"lead guitar":       "guitar",
	"acoustic guitar":   "acoustic",
	"ac":                "acoustic",
	"keyboard":          "keys",
	"kb":                "keys",
	"piano":             "keys",
	"overhead":          "overheads",
	"oh":                "overheads",
	"cymbals":           "overheads",
	"saxophone":         "sax",
}

// defaultInstrumentChannels assigns common instruments to one-based channel
// numbers when no explicit channel label exists for them.
var defaultInstrumentChannels = map[string]int{
	"vocals":    1,
	"kick":      2,
	"snare":     3,
	"hihat":     4,
	"bass":      5,
	"guitar":    6,
	"keys":      7,
	"acoustic":  8,
	"drums":     9,
	"overheads": 10,
	"strings":   11,
	"sax":       12,
}

// instrumentSimilarityMin is the Jaro-Winkler similarity an unrecognized
// phrase must reach to resolve as a near-miss of a known instrument name.
const instrumentSimilarityMin = 0.85

// fuzzyInstrument resolves a phrase that matched no instrument name exactly
// to the most similar canonical instrument, if any clears the similarity
// floor. Recognizers regularly mangle instrument names ("high hat", "vocalist")
// that no alias table can enumerate.
func fuzzyInstrument(phrase string) (string, bool) {
	best := ""
	bestScore := instrumentSimilarityMin
	for name := range defaultInstrumentChannels {
		if score := matchr.JaroWinkler(phrase, name, false); score >= bestScore {
			best, bestScore = name, score
		}
	}
	for alias, canonical := range instrumentAliases {
		if score := matchr.JaroWinkler(phrase, alias, false); score >= bestScore {
			best, bestScore = canonical, score
		}
	}
	return best, best != ""
}

// unitSynonyms folds spoken unit words onto a single canonical token so the
// grammar only has to recognise one spelling.
var unitSynonyms = map[string]string{
	"db":       "db",
	"dbs":      "db",
	"decibel":  "db",
	"decibels": "db",
}

// targetSynonyms folds target-kind words onto canonical grammar tokens.
var targetSynonyms = map[string]string{
	"channel": "channel",
	"ch":      "channel",
	"track":   "channel",
	"trk":     "channel",
	"strip":   "channel",
	"input":   "channel",
	"mix":     "mix",
	"aux":     "mix",
	"bus":     "mix",
	"monitor": "mix",
	"mon":     "mix",
	"wedge":   "mix",
	"scene":   "scene",
	"preset":  "scene",
	"snapshot": "scene",
	"memory":  "scene",
	"dca":     "dca",
	"vca":     "dca",
	"group":   "dca",
}

// parseNumber parses a target or scene number from a single token, accepting
// both digits and number words. Returns 0, false when the token is neither.
func parseNumber(token string) (int, bool) {
	if n, ok := parseDigits(token); ok {
		return n, true
	}
	n, ok := numberWords[strings.ToLower(token)]
	return n, ok
}

// parseDigits parses a plain decimal integer token, with optional leading
// sign. Returns false for anything else (strconv is avoided so "6db" and
// similar glued tokens never half-parse).
func parseDigits(token string) (int, bool) {
	if token == "" {
		return 0, false
	}
	neg := false
	i := 0
	switch token[0] {
	case '-':
		neg, i = true, 1
	case '+':
		i = 1
	}
	if i == len(token) {
		return 0, false
	}
	n := 0
	for ; i < len(token); i++ {
		c := token[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	if neg {
		n = -n
	}
	return n, true
}
