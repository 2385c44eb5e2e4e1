// Package config provides configuration management for quartus-catalog.
//
// This package handles:
//   - Loading and saving settings from YAML or JSON files
//   - Default configuration values for the Intel download center
//   - Conversion to the option types of the http, intel and retry packages
//   - Choosing the "Last Updated" date order per version page
//
// # Default Settings
//
//	settings := config.DefaultSettings()
//	// 5 attempts, 15s initial wait, 60s cap
//	// mdy dates
//
// # Loading from File
//
//	settings, err := config.Load("quartus-catalog.yaml")
//	if err != nil {
//	    // Uses defaults if file doesn't exist
//	}
//
// # Date order
//
// The site has shipped version pages with both day/month/year and
// month/day/year dates and nothing on the page tells them apart. The
// default order applies to every page unless its software kit ID has an
// override:
//
//	date_order: mdy
//	date_order_overrides:
//	  "666221": dmy
//
// # Static groups
//
// Listing groups skips discovery from the landing page:
//
//	groups:
//	  - edition: pro
//	    platform: linux
//	    pages:
//	      - version: "22.3"
//	        url: https://www.intel.com/content/www/us/en/software-kit/746666/...
package config
