// Package viewport classifies the browser viewport into coarse device tiers
// used for responsive layout decisions.
package viewport

// DeviceTier is a coarse viewport-size classification
type DeviceTier string

const (
	TierMobile  DeviceTier = "mobile"
	TierTablet  DeviceTier = "tablet"
	TierLaptop  DeviceTier = "laptop"
	TierDesktop DeviceTier = "desktop"
)

// Breakpoints in CSS pixels. Each tier starts at its breakpoint (inclusive)
// and ends before the next one.
const (
	BreakpointSmall   = 640
	BreakpointMedium  = 768
	BreakpointLarge   = 1024
	BreakpointXLarge  = 1280
	DefaultTier       = TierDesktop
	unmeasuredWidth   = -1
	legacyMobileLimit = BreakpointMedium
)

// Classify maps a viewport width to its device tier.
// Widths between the small and medium breakpoints share the mobile tier
// with everything narrower.
func Classify(width int) DeviceTier {
	switch {
	case width < BreakpointSmall:
		return TierMobile
	case width < BreakpointMedium:
		return TierMobile
	case width < BreakpointLarge:
		return TierTablet
	case width < BreakpointXLarge:
		return TierLaptop
	default:
		return TierDesktop
	}
}

// IsMobile is the binary classification kept for older layouts
func IsMobile(width int) bool {
	return width < legacyMobileLimit
}

// IsValid reports whether t is one of the known tiers
func (t DeviceTier) IsValid() bool {
	switch t {
	case TierMobile, TierTablet, TierLaptop, TierDesktop:
		return true
	}
	return false
}

// String implements fmt.Stringer
func (t DeviceTier) String() string {
	return string(t)
}

// Compact reports whether the tier should use the collapsed sidebar
func (t DeviceTier) Compact() bool {
	return t == TierMobile || t == TierTablet
}
