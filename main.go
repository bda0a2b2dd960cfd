package main

import "chunkc/cmd"

func main() {
	cmd.Execute()
}
