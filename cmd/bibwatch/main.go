package main

import "github.com/MeKo-Tech/bibwatch/cmd/bibwatch/cmd"

func main() {
	cmd.Execute()
}
