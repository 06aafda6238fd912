package main

import (
	"os"
)

func main() {
	if err := newQuoteCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
