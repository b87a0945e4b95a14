// Package views holds per-screen state objects. Each one loads its data from
// the services, keeps a local copy for the screen, and applies user actions
// against the services before updating that copy.
package views
