package main

import "github.com/khanhnv2901/seca-posture/cmd"

var execCmd = cmd.Execute

func main() {
	execCmd()
}
