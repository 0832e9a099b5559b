package main

import "github.com/tisannai/ringer/cmd"

func main() {
	cmd.Execute()
}
