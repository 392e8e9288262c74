package main

import "github.com/markb/logwatch/cmd"

func main() {
	cmd.Execute()
}
