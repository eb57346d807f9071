//go:build !cgo

package db

// Without cgo the sqlite3 driver is a stub, so its errors never reach us.
func isMattnUnique(error) bool { return false }

func isMattnCheck(error) bool { return false }
