//go:build !ORT

package provider

import "github.com/knights-analytics/hugot"

// newHugotSession runs the model on hugot's pure Go backend, which needs no
// shared libraries.
func newHugotSession() (*hugot.Session, error) {
	return hugot.NewGoSession()
}
