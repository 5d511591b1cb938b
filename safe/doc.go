// Package safe provides panic-free helpers for bounded decimal arithmetic.
//
// Core APIs are Bounds.Add and Bounds.Sub, which compute a result first and
// return ErrOverflow or ErrUnderflow instead of producing a value outside the
// configured range. Int128Bounds builds the range of a signed 128-bit scaled
// integer so fixed-point balances behave like wide integers without relying on
// a native 128-bit type.
package safe
