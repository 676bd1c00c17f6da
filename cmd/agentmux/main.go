package main

import "github.com/stevehuang0115/agentmux/internal/cli"

func main() {
	cli.Execute()
}
