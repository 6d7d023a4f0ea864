package main

import "github.com/strangelove-ventures/solana-counter-api/cmd"

func main() {
	cmd.Execute()
}
