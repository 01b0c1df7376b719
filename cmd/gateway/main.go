package main

import "gallery-gateway/cmd/gateway/cmd"

func main() {
	cmd.Execute()
}
