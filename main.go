package main

import "oracle-node/cmd"

func main() {
	cmd.Execute()
}
