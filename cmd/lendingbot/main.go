package main

import (
	"bfx-lending-bot/internal/cli"
)

func main() {
	cli.Execute()
}
