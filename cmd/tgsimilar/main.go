// Package main provides the entry point for the tgsimilar CLI.
//
// tgsimilar collects the "similar channels" the platform recommends for a
// list of public Telegram channels and exports them as a table.
//
// Usage:
//
//	tgsimilar crawl @durov @telegram
//	tgsimilar crawl --file channels.txt --format csv -o similar.csv
//	tgsimilar serve
//
// See --help for all available options.
package main

func main() {
	Execute()
}
