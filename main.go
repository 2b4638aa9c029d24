// The main package for the volscraper executable.
package main

import "github.com/JakeFAU/cme-volume-scraper/cmd"

func main() {
	cmd.Execute()
}
