package main

import "github.com/bz888/chatrelay/cmd"

func main() {
	cmd.Execute()
}
