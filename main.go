package main

import "github.com/why-cli/why/cmd"

func main() {
	cmd.Execute()
}
