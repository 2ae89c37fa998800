// Package outings decides whether a capture cluster joins an existing
// stored outing or starts a new one.
package outings
