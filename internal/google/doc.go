// Package google builds OAuth2 token sources for the Gmail API.
//
// Two OAuth clients have been registered over the life of the product. A
// refresh token only works with the client it was issued to, so
// CredentialSelector picks the client by the account's creation time and a
// fixed cutoff. When the creation time cannot be looked up the legacy client
// is used.
package google
