package main

import "github.com/drgolem/tomu/cmd"

func main() {
	cmd.Execute()
}
