// ABOUTME: Product and version identification
// ABOUTME: Version is overridden at build time with -ldflags "-X"
package version

import "fmt"

// Version is the release version
var Version = "0.2.0"

const (
	// Product is reported in client/hello device info
	Product = "Resonate Sessions"

	// Manufacturer is reported in client/hello device info
	Manufacturer = "Resonate"
)

// String returns "Product Version"
func String() string {
	return fmt.Sprintf("%s %s", Product, Version)
}
