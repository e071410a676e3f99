package main

import "github.com/KaramelBytes/scoreguard/cmd"

func main() {
	cmd.Execute()
}
