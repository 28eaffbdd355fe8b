package main

import "go-wallhaven-browser/cmd/wallhaven-browser/cmd"

func main() {
	cmd.Execute()
}
