package main

import "github.com/OpenTraceLab/xvcprog/cmd/xvcprog/cmd"

func main() {
	cmd.Execute()
}
