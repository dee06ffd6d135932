// ABOUTME: Version constants for the capture kit
// ABOUTME: Single source of truth for build identification
package version

const (
	// Version is the semantic version of the capture kit.
	Version = "0.1.0"

	// Product is the product name reported over discovery and control.
	Product = "CaptureKit"

	// Manufacturer identifies the project.
	Manufacturer = "CaptureKit Project"
)
