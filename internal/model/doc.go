// Package model defines shared data types used across stockcast.
//
// Conventions:
//   - Prices: float64 dollars, serialized with exactly two decimal places
//   - Symbols: canonical uppercase, normalized on ingestion
//   - Timestamps: tick generation time; wire messages carry none (arrival
//     order is the delivery contract)
package model
