// Command gigsmith generates marketplace gig listings from a keyword.
package main

import (
	"context"
	"os"
)

func main() {
	if err := rootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
