package main

import "github.com/yaumlabs/bridge/cmd"

func main() {
	cmd.Execute()
}
