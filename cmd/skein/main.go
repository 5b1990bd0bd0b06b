package main

import (
	"skein/internal/cmd"
)

func main() {
	cmd.Run()
}
