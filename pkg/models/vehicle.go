package models

import "strings"

// VehicleContext identifies the vehicle a set of error codes applies to.
// Trim is optional; the empty string means not specified.
type VehicleContext struct {
	Year  string `json:"year"`
	Make  string `json:"make"`
	Model string `json:"model"`
	Trim  string `json:"trim,omitempty"`
}

// IsComplete reports whether year, make and model are all set.
func (v VehicleContext) IsComplete() bool {
	return strings.TrimSpace(v.Year) != "" &&
		strings.TrimSpace(v.Make) != "" &&
		strings.TrimSpace(v.Model) != ""
}

// String returns "2024 Ford F-150 XLT" style display text.
func (v VehicleContext) String() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{v.Year, v.Make, v.Model, v.Trim} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}
