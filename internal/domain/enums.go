package domain

import "strings"

type Role string

const (
	RoleGuest Role = "guest"
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole maps a server-provided role string onto a Role.
// Anything unrecognised is treated as a guest.
func ParseRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin
	case RoleUser:
		return RoleUser
	default:
		return RoleGuest
	}
}

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ValidDifficulties is the canonical set of accepted difficulty strings.
var ValidDifficulties = map[string]bool{
	"easy": true, "medium": true, "hard": true,
}

type ScanStatus string

const (
	ScanClean    ScanStatus = "clean"
	ScanPending  ScanStatus = "pending"
	ScanRejected ScanStatus = "rejected"
)

// ParseScanStatus normalises the status vocabulary the backend has used over time.
func ParseScanStatus(s string) ScanStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "clean", "ok", "ready", "passed", "done":
		return ScanClean
	case "pending", "scanning", "queued", "processing":
		return ScanPending
	default:
		return ScanRejected
	}
}
