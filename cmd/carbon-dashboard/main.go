// Command carbon-dashboard serves the emissions dashboard API and provides
// calculator, import and export tools.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
