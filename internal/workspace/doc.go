// Package workspace decides where project sources are checked out when no
// explicit target path is configured.
//
// Persistent mode uses a fixed directory (the current directory by default)
// so repeated builds reuse or refuse the same checkout. Ephemeral mode creates
// a unique timestamped directory per run (e.g. docpipe-20251214-122336-0412)
// and removes it after the run.
package workspace
