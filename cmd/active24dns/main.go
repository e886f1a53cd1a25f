package main

import (
	"github.com/sirupsen/logrus"

	"active24dns/internal/cli"
)

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	cli.Execute()
}
