package tpx3

import "math"

// ChipTransform maps a chip-local pixel coordinate (x, y) in [0,256)^2 to a
// global detector coordinate. The default layout is identity + translation
// + an optional quarter-turn rotation, matching the standard 2x2 chip quad
// arrangement of a Venus-class detector.
type ChipTransform struct {
	OffsetX    int
	OffsetY    int
	RotationQ  int // number of 90-degree rotations, 0..3
	ChipSize   int // default 256
}

// Apply maps a local (x, y) pair to global coordinates.
func (t ChipTransform) Apply(x, y uint16) (uint16, uint16) {
	size := t.ChipSize
	if size == 0 {
		size = 256
	}
	lx, ly := int(x), int(y)
	var rx, ry int
	switch ((t.RotationQ % 4) + 4) % 4 {
	case 0:
		rx, ry = lx, ly
	case 1:
		rx, ry = size-1-ly, lx
	case 2:
		rx, ry = size-1-lx, size-1-ly
	case 3:
		rx, ry = ly, size-1-lx
	}
	gx := rx + t.OffsetX
	gy := ry + t.OffsetY
	if gx < 0 {
		gx = 0
	}
	if gy < 0 {
		gy = 0
	}
	return uint16(gx), uint16(gy)
}

// defaultChipTransforms lays out four 256x256 chips into a 512x512 plane,
// one per quadrant, the default Venus detector arrangement.
func defaultChipTransforms() [256]ChipTransform {
	var transforms [256]ChipTransform
	for i := range transforms {
		transforms[i] = ChipTransform{ChipSize: 256}
	}
	transforms[0] = ChipTransform{OffsetX: 0, OffsetY: 0, ChipSize: 256}
	transforms[1] = ChipTransform{OffsetX: 256, OffsetY: 0, ChipSize: 256}
	transforms[2] = ChipTransform{OffsetX: 0, OffsetY: 256, ChipSize: 256}
	transforms[3] = ChipTransform{OffsetX: 256, OffsetY: 256, ChipSize: 256}
	return transforms
}

// DetectorConfig carries the per-run, per-detector tunables: TDC
// frequency, chip-to-global coordinate transforms, and the missing-TDC
// policy. Named and shaped after the original's DetectorConfig /
// venus_defaults (original_source/rustpix-tpx/src/lib.rs).
type DetectorConfig struct {
	TDCFrequencyHz              float64
	ChipTransforms              [256]ChipTransform
	EnableMissingTDCCorrection  bool
}

// VenusDefaults returns the VENUS/SNS beamline default configuration: 60Hz
// TDC, identity quad-chip layout, missing-TDC hits buffered rather than
// dropped outright.
func VenusDefaults() DetectorConfig {
	return DetectorConfig{
		TDCFrequencyHz:             60.0,
		ChipTransforms:             defaultChipTransforms(),
		EnableMissingTDCCorrection: true,
	}
}

// TDCPeriodSeconds is 1/frequency.
func (c DetectorConfig) TDCPeriodSeconds() float64 {
	return 1.0 / c.TDCFrequencyHz
}

// TDCPeriodTicks is the TDC period expressed in 25ns ticks, rounded to the
// nearest integer, approximately 666,667 for the standard 60Hz pulse.
func (c DetectorConfig) TDCPeriodTicks() uint32 {
	return uint32(math.Round(c.TDCPeriodSeconds() / 25e-9))
}

// Validate reports ErrInvalidConfig wrapped with a reason when the
// configuration cannot be used.
func (c DetectorConfig) Validate() error {
	if c.TDCFrequencyHz <= 0 {
		return wrapInvalid("tdc_frequency_hz must be > 0")
	}
	return nil
}

func wrapInvalid(reason string) error {
	return &invalidConfigError{reason: reason}
}

type invalidConfigError struct {
	reason string
}

func (e *invalidConfigError) Error() string {
	return "tpx3: invalid configuration: " + e.reason
}

func (e *invalidConfigError) Unwrap() error {
	return ErrInvalidConfig
}
