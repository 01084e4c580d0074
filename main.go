package main

import (
	"github.com/uzzaidev/ChatBot-Oficial-sub002/cmd"
)

func main() {
	cmd.Execute()
}
