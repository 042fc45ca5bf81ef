package main

import "github.com/Norgate-AV/shaderbuild/cmd"

func main() {
	cmd.Execute()
}
