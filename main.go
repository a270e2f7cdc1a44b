package main

import "github/chapool/go-ledger-wallet/cmd"

func main() {
	cmd.Execute()
}
