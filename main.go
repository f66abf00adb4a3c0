package main

import "github.com/FrankSommer-64/issai-sub000/cmd"

func main() {
	cmd.Execute()
}
