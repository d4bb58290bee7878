package main

import "github.com/opsintel/intelbot/cmd"

func main() {
	cmd.Execute()
}
