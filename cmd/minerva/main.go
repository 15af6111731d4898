package main

import (
	"os"

	"github.com/minerva-intel/minerva/internal/cmd"
)

func main() {
	os.Exit(cmd.Main(os.Args))
}
