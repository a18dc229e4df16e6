package main

import "github.com/Forensiq/indexedRingBuffer/cmd"

func main() {
	cmd.Execute()
}
