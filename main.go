/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/flatwithoutbrokerage/flatapi/cmd"

func main() {
	cmd.Execute()
}
