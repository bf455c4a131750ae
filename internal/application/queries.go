package application

import "github.com/bnema/penphinmind/internal/domain"

// MindStatus is one row of the status view.
type MindStatus struct {
	Profile domain.MindProfile
	State   domain.ConnectionState
	Active  bool
	Default bool
}
