package main

import (
	"github.com/luma/disq/cmd"
)

func main() {
	cmd.Execute()
}
