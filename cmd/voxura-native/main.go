package main

import (
	"go-voxura-native/cmd/voxura-native/cmd"
)

func main() {
	// Execute the root command (defined in cmd/root.go)
	cmd.Execute()
}
