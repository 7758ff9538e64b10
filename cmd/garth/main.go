package main

import "github.com/garthlabs/garth-go/internal/cli"

func main() {
	cli.Execute()
}
