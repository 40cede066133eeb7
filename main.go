package main

import "github.com/robalobadob/rings/cmd"

func main() {
	cmd.Execute()
}
