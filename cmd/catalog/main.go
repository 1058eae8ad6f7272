package main

import (
	"os"

	"leafmart.dev/catalog/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
