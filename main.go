package main

import "github.com/ghanemar/stakeledger/cmd"

func main() {
	cmd.Execute()
}
