// Package main is the entry point for the ragchat service.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/kart-io/ragchat/cmd/ragchat/app"
)

func main() {
	app.NewApp().Run()
}
