// Package deviation computes a measuring tool's signed calibration error.
//
// A CalibrationReading is the as-found result of checking the tool against a
// reference standard: the value the tool reported, the nominal value of the
// standard, and the limits the tool itself had to meet. Its Deviation is
// measured minus nominal, computed in exact decimal arithmetic so that
// nearly-equal readings do not collapse under binary floating point.
//
// Sign convention: a positive Deviation means the tool reads high, so parts it
// measured are smaller than reported. A negative Deviation means the tool
// reads low and parts are larger than reported (the non-conservative case).
//
// Everything in this package is pure and safe for concurrent use.
package deviation
