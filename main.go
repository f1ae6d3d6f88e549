package main

import "github.com/legitfish/heroku-buildpack-freetds/cmd"

func main() {
	cmd.Execute()
}
