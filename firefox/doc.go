// Package firefox prepares a throwaway Firefox profile, launches a headless
// Firefox on it with Marionette enabled and supervises the process until it
// is shut down.
package firefox
