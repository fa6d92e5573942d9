package main

import "ham/cmd"

func main() {
	cmd.Execute()
}
