package main

import "github.com/moolen/publicenv/cmd"

func main() {
	cmd.Execute()
}
