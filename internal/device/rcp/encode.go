// Package rcp implements the Yamaha Remote Control Protocol transport:
// newline-delimited text commands over TCP, port 49280 by default.
package rcp

import (
	"fmt"

	"github.com/faderpilot/mixctl/internal/command"
)

// Encode renders a command as RCP wire lines. Most kinds map to a single
// line; a routing send with a level produces the on/off line followed by the
// send-level line.
func Encode(c command.Command) []string {
	switch c.Kind {
	case command.KindFaderLevel:
		return []string{fmt.Sprintf("set MIXER:Current/InCh/Fader/Level %d 0 %d", c.Target, c.Level)}
	case command.KindMute:
		return []string{fmt.Sprintf("set MIXER:Current/InCh/Fader/On %d 0 %d", c.Target, onFlag(c.On))}
	case command.KindSceneRecall:
		return []string{fmt.Sprintf("ssrecall_ex scene_%02d", c.Target+1)}
	case command.KindSceneStore:
		return []string{fmt.Sprintf("ssstore_ex scene_%02d", c.Target+1)}
	case command.KindRoutingSend:
		lines := []string{fmt.Sprintf("set MIXER:Current/InCh/ToMix/On %d %d 1", c.Target, c.AuxTarget)}
		if c.Level != 0 {
			lines = append(lines, fmt.Sprintf("set MIXER:Current/InCh/ToMix/Level %d %d %d", c.Target, c.AuxTarget, c.Level))
		}
		return lines
	case command.KindPan:
		return []string{fmt.Sprintf("set MIXER:Current/InCh/ToSt/Pan %d 0 %d", c.Target, c.Pan)}
	case command.KindEffectsSend:
		// Effects processors hang off the last mix buses; bus i is mix
		// MaxMixes-1-i zero-based from the top.
		mix := command.MaxMixes - 1 - c.AuxTarget
		return []string{fmt.Sprintf("set MIXER:Current/InCh/ToMix/On %d %d 1", c.Target, mix)}
	case command.KindDCALevel:
		return []string{fmt.Sprintf("set MIXER:Current/DCA/Fader/Level %d 0 %d", c.Target, c.Level)}
	case command.KindDCAMute:
		return []string{fmt.Sprintf("set MIXER:Current/DCA/Fader/On %d 0 %d", c.Target, onFlag(c.On))}
	case command.KindChannelLabel:
		return []string{fmt.Sprintf("set MIXER:Current/InCh/Label/Name %d 0 %q", c.Target, c.Label)}
	default:
		return nil
	}
}

// onFlag maps the unmuted state to the console's fader-on flag.
func onFlag(on bool) int {
	if on {
		return 1
	}
	return 0
}
