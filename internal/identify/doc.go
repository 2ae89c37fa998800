// Package identify wraps the external AI species identification service
// behind a small client interface.
package identify
