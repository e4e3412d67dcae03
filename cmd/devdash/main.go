package main

import "github.com/MrSnakeDoc/devdash/internal/cli"

func main() {
	cli.Execute()
}
