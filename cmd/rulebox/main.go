// Command rulebox runs review rule files against a repository and reports
// what they found.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

func init() {
	_ = godotenv.Load()
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errReviewFailed) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}
