// Package auth implements authentication for Facility Core: bearer token
// issue/verification, peppered password comparison, and persistence for
// user accounts and pending invitations.
//
// Users are provisioned out of band (an administrator seeds the account and
// sends the invitation); this surface reads users to authenticate them and
// never mutates an account.
//
// The process-wide shared secret has two roles here: it signs/verifies
// tokens and it peppers password comparison. Both roles are isolated behind
// small interfaces (Verifier, token helpers) so either can be swapped for
// another scheme, such as per-user salts, without touching call sites.
package auth
