package main

import "github.com/quire-reader/quire/cmd"

func main() {
	cmd.Execute()
}
