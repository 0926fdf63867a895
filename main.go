package main

import "github.com/streamforge/physport/cmd"

func main() {
	cmd.Execute()
}
