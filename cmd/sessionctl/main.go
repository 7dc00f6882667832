package main

import "shopify-session-storage/cmd/sessionctl/cmd"

func main() {
	cmd.Execute()
}
