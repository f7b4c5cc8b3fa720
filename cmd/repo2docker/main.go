package main

import (
	"github.com/johnhoman/repo2docker/pkg/cmd"
)

func main() {
	cmd.Execute()
}
