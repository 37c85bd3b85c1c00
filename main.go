package main

import "github.com/sparrowbot/sparrow-go/cmd"

func main() {
	cmd.Execute()
}
