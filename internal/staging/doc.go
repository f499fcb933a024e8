// Package staging allocates per-job scratch workspaces and sweeps the ones a
// crashed run left behind.
package staging
