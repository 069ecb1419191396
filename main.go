/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/killallgit/testimony-api/cmd"

// @title           Testimony API
// @version         1.0.0
// @description     Upload, transcribe, summarize and search recorded church testimonies
// @contact.name    API Support
// @contact.url     https://github.com/killallgit/testimony-api
// @license.name    MIT
// @license.url     https://opensource.org/licenses/MIT
// @host            localhost:8080
// @BasePath        /
// @schemes         http https
func main() {
	cmd.Execute()
}
