package main

import "github.com/volfpeter/graphscraper/cmd/graphscraper/commands"

func main() {
	commands.Execute()
}
