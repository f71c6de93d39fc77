// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 L5 Contributors

package carbon

const (
	// PoundsToGrams is the mass of one avoirdupois pound in grams.
	PoundsToGrams = 453.59237
	// MWhToKWh is the number of kilowatt-hours in a megawatt-hour.
	MWhToKWh = 1000.0
)

// GramsPerKWh converts pounds of CO2 per MWh to grams of CO2 per kWh.
func GramsPerKWh(poundsPerMWh float64) float64 {
	return poundsPerMWh * PoundsToGrams / MWhToKWh
}
