package console

const (
	// Default terminal width in characters.
	defaultTermWidth = 80
	// Widest horizontal rule drawn around summaries.
	maxRuleWidth = 60
	// Amount of padding in chars between rendered text and the right-side
	// terminal window edge.
	termPadding = 1
)
