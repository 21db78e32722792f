// foxshot renders web pages with a headless Firefox, driven over the raw
// Marionette protocol, and saves them as PNG screenshots or PDF documents.
package main

import "github.com/liuxd6825/foxshot/cmd"

func main() {
	cmd.Execute()
}
