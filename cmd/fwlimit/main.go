/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// fwlimit counts hits of identifiers in fixed time windows and serves the limiter over HTTP.
package main

import (
	"os"

	"github.com/acronis/go-ratelimit/cmd/fwlimit/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
