// Package main is entrypoint for the application
package main

import (
	"roomcast/cmd"
)

func main() {
	cmd.Run()
}
