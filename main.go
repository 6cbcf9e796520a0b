package main

import "filemirror/cmd"

func main() {
	cmd.Execute()
}
