package main

import (
	"os"

	"github.com/sirupsen/logrus"

	"fleet-admin/cli"
)

func main() {
	app := cli.NewApp()
	if err := app.Run(os.Args[1:]); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}
