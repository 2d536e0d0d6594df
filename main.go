package main

import "github.com/stratusctl/stratus/cmd"

func main() {
	cmd.Execute()
}
