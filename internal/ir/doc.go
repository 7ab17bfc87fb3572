// Package ir provides the domain types shared by every courseswap package.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. This keeps the domain layer free of
// storage and transport concerns.
//
// Key design constraints:
//   - Account and course identifiers are fixed 32-byte values, hex in text
//   - All JSON tags use snake_case
//   - Error kinds are closed; every failing operation reports exactly one
package ir
