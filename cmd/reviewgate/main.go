package main

import "github.com/reviewgate/reviewgate/cmd/reviewgate/cmd"

func main() {
	cmd.Execute()
}
