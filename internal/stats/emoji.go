package stats

import "strings"

// EmojiPolicy controls how emoji are detected in message content. Detection
// method is deliberately configurable: code-point ranges catch Unicode emoji,
// the shorthand list catches platform tokens like ":smile:".
type EmojiPolicy struct {
	UseCodePoints bool
	Shorthands    []string
}

// DefaultEmojiPolicy scans Unicode emoji code-point ranges only.
func DefaultEmojiPolicy() EmojiPolicy {
	return EmojiPolicy{UseCodePoints: true}
}

var emojiRanges = [][2]rune{
	{0x1F300, 0x1F5FF}, // symbols and pictographs
	{0x1F600, 0x1F64F}, // emoticons
	{0x1F680, 0x1F6FF}, // transport and map
	{0x1F900, 0x1F9FF}, // supplemental symbols
	{0x1FA70, 0x1FAFF}, // extended pictographs
	{0x1F1E6, 0x1F1FF}, // regional indicators
	{0x2600, 0x26FF},   // misc symbols
	{0x2700, 0x27BF},   // dingbats
}

// Scan returns each emoji occurrence in content as a token, in order.
func (p EmojiPolicy) Scan(content string) []string {
	var found []string
	if p.UseCodePoints {
		for _, r := range content {
			if isEmojiRune(r) {
				found = append(found, string(r))
			}
		}
	}
	for _, token := range p.Shorthands {
		for count := strings.Count(content, token); count > 0; count-- {
			found = append(found, token)
		}
	}
	return found
}

func isEmojiRune(r rune) bool {
	for _, rng := range emojiRanges {
		if r >= rng[0] && r <= rng[1] {
			return true
		}
	}
	return false
}
