package main

import "github.com/gnuk-go/cardengine/cmd"

func main() {
	cmd.Execute()
}
