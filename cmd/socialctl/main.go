// Command socialctl serves the social account routes and manages the
// database and OAuth app credentials behind them.
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
