package capture

import "strconv"

const rootSelector = ":root"

// WidthScript sets the CSS width of the root element.
func WidthScript(width string) string {
	return styleScript("width", width)
}

// HeightScript sets the CSS height of the root element.
func HeightScript(height string) string {
	return styleScript("height", height)
}

func styleScript(property, value string) string {
	return `document.querySelector(` + strconv.Quote(rootSelector) + `).style.` + property + ` = ` + strconv.Quote(value)
}

// layoutScripts returns the resize snippets for the dimensions that are set,
// width first.
func layoutScripts(width, height string) []string {
	var scripts []string
	if width != "" {
		scripts = append(scripts, WidthScript(width))
	}
	if height != "" {
		scripts = append(scripts, HeightScript(height))
	}
	return scripts
}
