package main

import "tubesum/cmd"

func main() {
	cmd.Execute()
}
