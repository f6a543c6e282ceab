// Command flapi runs the data API gateway.
package main

import (
	"os"

	"github.com/datazoode/flapi/cmd/flapi/app"
)

func main() {
	if err := app.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
