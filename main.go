package main

import (
	"github.com/avidaloop/localsend-go/cmd"
)

func main() {
	cmd.Execute()
}
