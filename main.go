package main

import "github.com/Tiliavir/timereg/cmd"

func main() {
	cmd.Execute()
}
