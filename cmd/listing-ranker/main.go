/*
Package main is the entry point for the listing-ranker CLI.

listing-ranker ranks commercial property listings against free-text queries
and adapts its ranking from clicks and ratings.

Usage:
  listing-ranker [command]

Available Commands:
  serve       Run the ranking service (JSON-RPC over stdio)
  search      Rank a catalog snapshot for a query
  click       Record a click on a result
  feedback    Rate the results of a query (1-5)
  stats       Show learning statistics
  learning    Manage learned ranking state
  config      Create or inspect configuration
  version     Show version information

Examples:
  # Rank a catalog
  listing-ranker search "офис 80 у метро" --items listings.json

  # Run as a service
  listing-ranker serve --items listings.json
*/
package main

import "github.com/khanglvm/listing-ranker/internal/cli"

func main() {
	cli.Execute()
}
