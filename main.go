package main

import "stream-porter/cmd"

func main() {
	cmd.Execute()
}
