// Package sealtype defines shared types used across the seal package and its
// internal packages. This avoids circular imports between seal and the
// pipeline stages.
package sealtype
