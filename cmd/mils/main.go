package main

import "github.com/DqkrLord0Xerod/Multistage-Intelligence-Looping-System/internal/cli"

func main() {
	cli.Execute()
}
