//go:build !linux

package app

func processRSSBytes() (uint64, bool) { return 0, false }
