package main

import "github.com/marcus/trellis/cmd/trellis/commands"

func main() {
	commands.Execute()
}
