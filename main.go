package main

import "github.com/audiolibrelab/reelcapture/cmd"

func main() {
	cmd.Execute()
}
