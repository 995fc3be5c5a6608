package main

import "relaychat/cmd"

func main() {
	cmd.Execute()
}
