package main

import "github.com/OpenTraceLab/OpenTraceRIO/cmd/rio/cmd"

func main() {
	cmd.Execute()
}
