package main

import "github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/cmd"

func main() {
	cmd.Execute()
}
