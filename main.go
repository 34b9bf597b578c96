package main

import "github.com/KaramelBytes/sheetwise-cli/cmd"

func main() {
	cmd.Execute()
}
